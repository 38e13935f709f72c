package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
	"github.com/contexo-app/contexo/internal/services/combine"
	"github.com/contexo-app/contexo/internal/services/registry"
)

var stepDescriptions = map[string][2]string{
	models.StepExtract: {"Extract", "Extract text and structure from each file"},
	models.StepAnalyze: {"Analyze", "Analyze file content with the selected provider"},
	models.StepCombine: {"Combine", "Merge files into a single document"},
}

// Service executes processing runs over the file registry. At most one
// run is active at a time; starting a new run replaces the finished one.
type Service struct {
	registry  *registry.Service
	extractor interfaces.TextExtractor
	combiner  *combine.Service
	ai        interfaces.AIService
	events    interfaces.EventService
	logger    arbor.ILogger

	mu      sync.Mutex
	current *models.PipelineRun
	cancel  context.CancelFunc
	result  *models.CombinationResult
}

func NewService(
	reg *registry.Service,
	extractor interfaces.TextExtractor,
	combiner *combine.Service,
	ai interfaces.AIService,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		registry:  reg,
		extractor: extractor,
		combiner:  combiner,
		ai:        ai,
		events:    events,
		logger:    logger,
	}
}

// Start begins a new run with the given stage configuration. The file set
// is snapshotted before the first step; registry changes made while the
// run executes do not affect it. Returns an error when a run is already
// active or the configuration enables no steps.
func (s *Service) Start(ctx context.Context, config models.PipelineConfig) (*models.PipelineRun, error) {
	enabled := config.Enabled()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("pipeline configuration enables no steps")
	}

	s.mu.Lock()
	if s.current != nil && !s.current.Terminal() {
		s.mu.Unlock()
		return nil, fmt.Errorf("a pipeline run is already active")
	}

	now := time.Now()
	run := &models.PipelineRun{
		ID:        common.NewRunID(),
		Status:    models.RunStatusRunning,
		StartTime: &now,
	}
	for _, id := range enabled {
		desc := stepDescriptions[id]
		run.Steps = append(run.Steps, &models.PipelineStep{
			ID:          id,
			Name:        desc[0],
			Description: desc[1],
			Status:      models.StepStatusPending,
		})
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.current = run
	s.cancel = cancel
	s.result = nil
	snapshot := s.registry.Snapshot()
	s.mu.Unlock()

	s.logger.Info().
		Str("run_id", run.ID).
		Int("files", len(snapshot)).
		Int("steps", len(run.Steps)).
		Msg("Pipeline run started")

	s.events.Publish(runCtx, interfaces.Event{
		Type:    interfaces.EventRunStarted,
		Payload: s.Status(),
	})

	go s.execute(runCtx, run, config, snapshot)

	return s.snapshotRun(run), nil
}

// Cancel terminates the active run. The run flips to cancelled with an end
// timestamp right here; cancellation of the worker is cooperative, and
// whatever the in-flight step still resolves is discarded.
func (s *Service) Cancel() {
	s.mu.Lock()
	if s.cancel == nil || s.current == nil || s.current.Terminal() {
		s.mu.Unlock()
		return
	}
	s.cancel()

	now := time.Now()
	run := s.current
	run.Status = models.RunStatusCancelled
	run.EndTime = &now
	for _, step := range run.Steps {
		if step.Status == models.StepStatusRunning {
			step.Status = models.StepStatusSkipped
			step.EndTime = &now
		}
	}
	run.OverallProgress = overallProgress(run)
	snapshot := s.snapshotRun(run)
	s.mu.Unlock()

	s.logger.Info().Str("run_id", run.ID).Msg("Pipeline run cancelled")
	s.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventRunFinished,
		Payload: snapshot,
	})
}

// Status returns a copy of the current run, or nil when none has started
func (s *Service) Status() *models.PipelineRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.snapshotRun(s.current)
}

// Result returns the combination output of the last completed run
func (s *Service) Result() *models.CombinationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// execute runs the enabled steps strictly in order. A step error is
// fail-fast: the run terminates and later steps stay pending.
func (s *Service) execute(ctx context.Context, run *models.PipelineRun, config models.PipelineConfig, files []models.UploadedFile) {
	defer func() {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	working := make([]*models.UploadedFile, len(files))
	for i := range files {
		f := files[i]
		working[i] = &f
	}

	for _, step := range run.Steps {
		if err := ctx.Err(); err != nil {
			s.finish(ctx, run, models.RunStatusCancelled, "")
			return
		}

		s.transitionStep(ctx, run, step, models.StepStatusRunning, "")

		var err error
		switch step.ID {
		case models.StepExtract:
			err = s.runExtract(ctx, run, step, working)
		case models.StepAnalyze:
			err = s.runAnalyze(ctx, run, step, config.AnalyzeOpts, working)
		case models.StepCombine:
			err = s.runCombine(ctx, run, step, config, working)
		}

		if err != nil && ctx.Err() != nil {
			s.transitionStep(ctx, run, step, models.StepStatusSkipped, "")
			s.finish(ctx, run, models.RunStatusCancelled, "")
			return
		}
		if err != nil {
			s.transitionStep(ctx, run, step, models.StepStatusError, err.Error())
			s.finish(ctx, run, models.RunStatusError, fmt.Sprintf("step %s failed: %v", step.ID, err))
			return
		}

		s.transitionStep(ctx, run, step, models.StepStatusComplete, "")
	}

	s.finish(ctx, run, models.RunStatusComplete, "")
}

// runExtract extracts text and structure per file. A single file failing
// marks that file and continues; only a wholesale failure fails the step.
func (s *Service) runExtract(ctx context.Context, run *models.PipelineRun, step *models.PipelineStep, files []*models.UploadedFile) error {
	failed := 0

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		text, err := s.extractor.ExtractText(file)
		if err != nil {
			failed++
			s.markFileError(ctx, file, err)
			s.setStepProgress(ctx, run, step, (i+1)*100/len(files))
			continue
		}

		structure, err := s.extractor.ExtractMetadata(file)
		if err != nil {
			s.logger.Warn().
				Str("file", file.Name).
				Err(err).
				Msg("Structure extraction failed, keeping text")
		}

		file.ExtractedText = text
		file.Structure = structure
		file.Status = models.FileStatusReady

		status := models.FileStatusReady
		_ = s.registry.Update(file.ID, registry.FileUpdate{
			ExtractedText: &text,
			Structure:     structure,
			Status:        &status,
		})

		s.setStepProgress(ctx, run, step, (i+1)*100/len(files))
	}

	if len(files) > 0 && failed == len(files) {
		return fmt.Errorf("extraction failed for all %d files", failed)
	}
	return nil
}

// runAnalyze asks the configured provider for a per-file analysis. Nil
// options complete the step without provider calls.
func (s *Service) runAnalyze(ctx context.Context, run *models.PipelineRun, step *models.PipelineStep, opts *models.AnalyzeOptions, files []*models.UploadedFile) error {
	if opts == nil {
		s.logger.Debug().Str("run_id", run.ID).Msg("Analyze step enabled without options, completing as no-op")
		s.setStepProgress(ctx, run, step, 100)
		return nil
	}

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if file.Status == models.FileStatusError {
			continue
		}

		analysis, err := s.ai.GenerateWith(ctx, opts.Provider, opts.Model, analysisPrompt(file))
		if err != nil {
			return fmt.Errorf("analysis of %s failed: %w", file.Name, err)
		}

		file.Analysis = analysis
		_ = s.registry.Update(file.ID, registry.FileUpdate{Analysis: &analysis})

		s.setStepProgress(ctx, run, step, (i+1)*100/len(files))
	}

	return nil
}

// runCombine merges the working set into the final document. Nil options
// complete the step without producing output.
func (s *Service) runCombine(ctx context.Context, run *models.PipelineRun, step *models.PipelineStep, config models.PipelineConfig, files []*models.UploadedFile) error {
	if config.CombineOpts == nil {
		s.logger.Debug().Str("run_id", run.ID).Msg("Combine step enabled without options, completing as no-op")
		s.setStepProgress(ctx, run, step, 100)
		return nil
	}

	opts := *config.CombineOpts
	if opts.Title == "" {
		opts.Title = config.DocumentName
	}

	result, err := s.combiner.Combine(ctx, files, opts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !run.Terminal() {
		s.result = result
	}
	s.mu.Unlock()

	s.setStepProgress(ctx, run, step, 100)
	return nil
}

// markFileError records a per-file failure without failing the step
func (s *Service) markFileError(ctx context.Context, file *models.UploadedFile, err error) {
	s.logger.Warn().
		Str("file", file.Name).
		Err(err).
		Msg("File extraction failed")

	file.Status = models.FileStatusError
	file.Error = err.Error()

	status := models.FileStatusError
	message := err.Error()
	_ = s.registry.Update(file.ID, registry.FileUpdate{Status: &status, Error: &message})

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventFileError,
		Payload: map[string]string{
			"file_id": file.ID,
			"name":    file.Name,
			"error":   message,
		},
	})
}

// transitionStep moves a step to a new status and recomputes run progress.
// Once the run is terminal the step's late result is dropped.
func (s *Service) transitionStep(ctx context.Context, run *models.PipelineRun, step *models.PipelineStep, status models.StepStatus, message string) {
	s.mu.Lock()
	if run.Terminal() {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	step.Status = status
	switch status {
	case models.StepStatusRunning:
		step.StartTime = &now
	case models.StepStatusComplete, models.StepStatusError, models.StepStatusSkipped:
		step.EndTime = &now
		if status == models.StepStatusComplete {
			step.Progress = 100
		}
	}
	step.Error = message
	run.OverallProgress = overallProgress(run)
	snapshot := s.snapshotRun(run)
	s.mu.Unlock()

	s.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventStepProgress,
		Payload: snapshot,
	})
}

// setStepProgress bumps a step's progress, never backwards
func (s *Service) setStepProgress(ctx context.Context, run *models.PipelineRun, step *models.PipelineStep, progress int) {
	s.mu.Lock()
	if run.Terminal() {
		s.mu.Unlock()
		return
	}
	if progress > step.Progress {
		step.Progress = progress
	}
	run.OverallProgress = overallProgress(run)
	snapshot := s.snapshotRun(run)
	s.mu.Unlock()

	s.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventStepProgress,
		Payload: snapshot,
	})
}

// finish moves the run to a terminal state. A run already terminal (an
// external Cancel won) is left untouched.
func (s *Service) finish(ctx context.Context, run *models.PipelineRun, status models.RunStatus, message string) {
	s.mu.Lock()
	if run.Terminal() {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	run.Status = status
	run.EndTime = &now
	run.Error = message
	run.OverallProgress = overallProgress(run)
	snapshot := s.snapshotRun(run)
	s.mu.Unlock()

	s.logger.Info().
		Str("run_id", run.ID).
		Str("status", string(status)).
		Msg("Pipeline run finished")

	s.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventRunFinished,
		Payload: snapshot,
	})
}

// overallProgress derives run progress from completed steps. Caller holds
// the service lock.
func overallProgress(run *models.PipelineRun) int {
	if len(run.Steps) == 0 {
		return 0
	}
	done := 0
	for _, step := range run.Steps {
		if step.Status == models.StepStatusComplete {
			done++
		}
	}
	progress := done * 100 / len(run.Steps)
	if progress > run.OverallProgress {
		return progress
	}
	return run.OverallProgress
}

// snapshotRun deep-copies a run for callers outside the lock
func (s *Service) snapshotRun(run *models.PipelineRun) *models.PipelineRun {
	out := *run
	out.Steps = make([]*models.PipelineStep, len(run.Steps))
	for i, step := range run.Steps {
		copied := *step
		out.Steps[i] = &copied
	}
	return &out
}

func analysisPrompt(file *models.UploadedFile) string {
	content := file.Content
	if file.ExtractedText != "" {
		content = file.ExtractedText
	}

	var b strings.Builder
	b.WriteString("Analyze the following file and summarize its purpose, key topics, and structure in a short paragraph.\n\n")
	fmt.Fprintf(&b, "Filename: %s\n\n", file.Name)
	b.WriteString(content)
	return b.String()
}
