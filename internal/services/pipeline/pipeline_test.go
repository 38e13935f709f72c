package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
	"github.com/contexo-app/contexo/internal/services/combine"
	"github.com/contexo-app/contexo/internal/services/events"
	"github.com/contexo-app/contexo/internal/services/registry"
)

// fakeExtractor fails files whose name contains "bad"
type fakeExtractor struct {
	delay time.Duration
}

func (f *fakeExtractor) ExtractText(file *models.UploadedFile) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if strings.Contains(file.Name, "bad") {
		return "", fmt.Errorf("cannot decode %s", file.Name)
	}
	return "extracted: " + file.Content, nil
}

func (f *fakeExtractor) ExtractMetadata(file *models.UploadedFile) (*models.FileStructure, error) {
	return &models.FileStructure{WordCount: len(strings.Fields(file.Content))}, nil
}

// fakeAI implements the unified generation contract with scriptable errors
type fakeAI struct {
	mu          sync.Mutex
	generateErr error
	calls       int
}

func (f *fakeAI) Ready(tag models.ProviderTag) bool  { return true }
func (f *fakeAI) ActiveProvider() models.ProviderTag { return models.ProviderGemini }
func (f *fakeAI) ActiveModel() string                { return "gemini-2.5-flash" }

func (f *fakeAI) Generate(ctx context.Context, prompt string) (string, error) {
	return f.GenerateWith(ctx, models.ProviderGemini, "gemini-2.5-flash", prompt)
}

func (f *fakeAI) GenerateWith(ctx context.Context, tag models.ProviderTag, modelID, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.generateErr != nil {
		return "", interfaces.NewAIError(interfaces.ErrKindGenerationFailed, string(tag), f.generateErr.Error(), f.generateErr)
	}
	return "analysis result", nil
}

func (f *fakeAI) ProcessFiles(ctx context.Context, files []models.FileInput, documentName string) (string, error) {
	return "# " + documentName, nil
}

func (f *fakeAI) Condense(ctx context.Context, content string) (string, error) {
	return "condensed", nil
}

func (f *fakeAI) HandleUserMessage(ctx context.Context, message string, context []models.FileInput) (string, error) {
	return "reply", nil
}

type fixture struct {
	registry *registry.Service
	pipeline *Service
	ai       *fakeAI
}

func newFixture(t *testing.T, extractor interfaces.TextExtractor) *fixture {
	t.Helper()
	logger := arbor.NewLogger()
	reg := registry.NewService(&common.FilesConfig{MaxCount: 50, PreviewLength: 100}, logger)
	ai := &fakeAI{}
	combiner := combine.NewService(nil, ai, logger)
	eventBus := events.NewService(logger)
	return &fixture{
		registry: reg,
		ai:       ai,
		pipeline: NewService(reg, extractor, combiner, ai, eventBus, logger),
	}
}

// waitTerminal polls until the run reaches a terminal state
func waitTerminal(t *testing.T, p *Service) *models.PipelineRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if run := p.Status(); run != nil && run.Terminal() {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run did not reach a terminal state")
	return nil
}

func TestRunCombineOnly(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})
	f.registry.Add("a.md", "alpha content here", models.FileTypeMarkdown)
	f.registry.Add("b.md", "beta content here", models.FileTypeMarkdown)

	opts := models.DefaultCombinationOptions()
	run, err := f.pipeline.Start(context.Background(), models.PipelineConfig{
		Combine:     true,
		CombineOpts: &opts,
	})
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if len(run.Steps) != 1 || run.Steps[0].ID != models.StepCombine {
		t.Fatalf("steps = %+v, want single combine step", run.Steps)
	}

	final := waitTerminal(t, f.pipeline)
	if final.Status != models.RunStatusComplete {
		t.Fatalf("run status = %q (%s), want complete", final.Status, final.Error)
	}
	if final.OverallProgress != 100 {
		t.Errorf("OverallProgress = %d, want 100", final.OverallProgress)
	}

	result := f.pipeline.Result()
	if result == nil {
		t.Fatal("Result() is nil after a completed combine")
	}
	if !strings.Contains(result.Content, "alpha content here") {
		t.Errorf("combined content missing file body:\n%s", result.Content)
	}
	if result.Metadata.FilesProcessed != 2 {
		t.Errorf("FilesProcessed = %d, want 2", result.Metadata.FilesProcessed)
	}
}

func TestRunExtractFailSoft(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})
	good, _ := f.registry.Add("good.md", "fine", models.FileTypeMarkdown)
	bad, _ := f.registry.Add("bad.bin", "garbage", models.FileTypeUnknown)

	opts := models.DefaultCombinationOptions()
	_, err := f.pipeline.Start(context.Background(), models.PipelineConfig{
		Extract:     true,
		Combine:     true,
		CombineOpts: &opts,
	})
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	final := waitTerminal(t, f.pipeline)
	if final.Status != models.RunStatusComplete {
		t.Fatalf("run status = %q (%s), one bad file must not fail the run", final.Status, final.Error)
	}

	goodFile, _ := f.registry.Get(good.ID)
	if goodFile.Status != models.FileStatusReady || goodFile.ExtractedText == "" {
		t.Errorf("good file = {status: %q, extracted: %q}, want ready with text", goodFile.Status, goodFile.ExtractedText)
	}

	badFile, _ := f.registry.Get(bad.ID)
	if badFile.Status != models.FileStatusError || badFile.Error == "" {
		t.Errorf("bad file = {status: %q, error: %q}, want error state with message", badFile.Status, badFile.Error)
	}

	result := f.pipeline.Result()
	if result == nil {
		t.Fatal("Result() is nil")
	}
	if len(result.Warnings) == 0 {
		t.Error("combine should warn about the skipped file")
	}
}

func TestRunAnalyzeFailureIsFailFast(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})
	f.ai.generateErr = errors.New("provider exploded")
	f.registry.Add("a.md", "content", models.FileTypeMarkdown)

	opts := models.DefaultCombinationOptions()
	_, err := f.pipeline.Start(context.Background(), models.PipelineConfig{
		Extract:     true,
		Analyze:     true,
		Combine:     true,
		AnalyzeOpts: &models.AnalyzeOptions{Provider: models.ProviderGemini, Model: "gemini-2.5-flash"},
		CombineOpts: &opts,
	})
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	final := waitTerminal(t, f.pipeline)
	if final.Status != models.RunStatusError {
		t.Fatalf("run status = %q, want error", final.Status)
	}

	byID := map[string]*models.PipelineStep{}
	for _, step := range final.Steps {
		byID[step.ID] = step
	}
	if byID[models.StepExtract].Status != models.StepStatusComplete {
		t.Errorf("extract step = %q, want complete", byID[models.StepExtract].Status)
	}
	if byID[models.StepAnalyze].Status != models.StepStatusError {
		t.Errorf("analyze step = %q, want error", byID[models.StepAnalyze].Status)
	}
	// Fail-fast: the combine step never starts
	if byID[models.StepCombine].Status != models.StepStatusPending {
		t.Errorf("combine step = %q, want pending", byID[models.StepCombine].Status)
	}
	if f.pipeline.Result() != nil {
		t.Error("Result() should stay nil when combine never ran")
	}
}

func TestRunAnalyzeWithoutOptionsIsNoOp(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})
	f.registry.Add("a.md", "content", models.FileTypeMarkdown)

	_, err := f.pipeline.Start(context.Background(), models.PipelineConfig{Analyze: true})
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	final := waitTerminal(t, f.pipeline)
	if final.Status != models.RunStatusComplete {
		t.Fatalf("run status = %q, want complete (no-op analyze)", final.Status)
	}
	if f.ai.calls != 0 {
		t.Errorf("provider called %d times, nil options must skip provider calls", f.ai.calls)
	}
}

func TestStartRejectsEmptyConfig(t *testing.T) {
	f := newFixture(t, &fakeExtractor{})
	if _, err := f.pipeline.Start(context.Background(), models.PipelineConfig{}); err == nil {
		t.Error("Start() with no enabled steps should fail")
	}
}

func TestStartRejectsConcurrentRun(t *testing.T) {
	f := newFixture(t, &fakeExtractor{delay: 50 * time.Millisecond})
	f.registry.Add("a.md", "content", models.FileTypeMarkdown)

	if _, err := f.pipeline.Start(context.Background(), models.PipelineConfig{Extract: true}); err != nil {
		t.Fatalf("first Start() failed: %v", err)
	}
	if _, err := f.pipeline.Start(context.Background(), models.PipelineConfig{Extract: true}); err == nil {
		t.Error("second Start() while running should fail")
	}

	waitTerminal(t, f.pipeline)
}

func TestCancelRun(t *testing.T) {
	f := newFixture(t, &fakeExtractor{delay: 30 * time.Millisecond})
	for i := 0; i < 20; i++ {
		f.registry.Add(fmt.Sprintf("f%d.md", i), "content", models.FileTypeMarkdown)
	}

	opts := models.DefaultCombinationOptions()
	_, err := f.pipeline.Start(context.Background(), models.PipelineConfig{
		Extract:     true,
		Combine:     true,
		CombineOpts: &opts,
	})
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	f.pipeline.Cancel()

	final := waitTerminal(t, f.pipeline)
	if final.Status != models.RunStatusCancelled {
		t.Fatalf("run status = %q, want cancelled", final.Status)
	}

	// A new run may start after cancellation
	if _, err := f.pipeline.Start(context.Background(), models.PipelineConfig{Extract: true}); err != nil {
		t.Errorf("Start() after cancel failed: %v", err)
	}
	waitTerminal(t, f.pipeline)
}

func TestCancelIsImmediatelyTerminal(t *testing.T) {
	f := newFixture(t, &fakeExtractor{delay: 50 * time.Millisecond})
	for i := 0; i < 20; i++ {
		f.registry.Add(fmt.Sprintf("f%d.md", i), "content", models.FileTypeMarkdown)
	}

	opts := models.DefaultCombinationOptions()
	_, err := f.pipeline.Start(context.Background(), models.PipelineConfig{
		Extract:     true,
		Combine:     true,
		CombineOpts: &opts,
	})
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	f.pipeline.Cancel()

	// The terminal state is visible the moment Cancel returns, not when
	// the worker next checks its context
	run := f.pipeline.Status()
	if run.Status != models.RunStatusCancelled {
		t.Fatalf("status right after Cancel() = %q, want cancelled", run.Status)
	}
	if run.EndTime == nil {
		t.Error("cancelled run must carry an end timestamp")
	}
	for _, step := range run.Steps {
		if step.Status == models.StepStatusRunning {
			t.Errorf("step %s still running after Cancel()", step.ID)
		}
	}

	// The in-flight step resolves on its own; its outcome must not reopen
	// the run or leak a result
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := f.pipeline.Status().Status; got != models.RunStatusCancelled {
			t.Fatalf("status = %q after cancellation, want cancelled for good", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if f.pipeline.Result() != nil {
		t.Error("a cancelled run must not expose a combination result")
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	f := newFixture(t, &fakeExtractor{delay: 5 * time.Millisecond})
	for i := 0; i < 5; i++ {
		f.registry.Add(fmt.Sprintf("f%d.md", i), "content", models.FileTypeMarkdown)
	}

	opts := models.DefaultCombinationOptions()
	_, err := f.pipeline.Start(context.Background(), models.PipelineConfig{
		Extract:     true,
		Combine:     true,
		CombineOpts: &opts,
	})
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	last := -1
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run := f.pipeline.Status()
		if run.OverallProgress < last {
			t.Fatalf("progress went backwards: %d -> %d", last, run.OverallProgress)
		}
		last = run.OverallProgress
		if run.Terminal() {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
}
