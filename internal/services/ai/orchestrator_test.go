package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
)

// fakeSettings is an in-memory SettingsService recording update counts
type fakeSettings struct {
	mu      sync.Mutex
	record  models.ConfigRecord
	updates int
}

func (f *fakeSettings) Get() models.ConfigRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record
}

func (f *fakeSettings) Update(mutate func(*models.ConfigRecord)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(&f.record)
	f.updates++
}

// fakeKeyed implements KeyedProvider with scriptable outcomes
type fakeKeyed struct {
	validateErr  error
	generateErr  error
	calls        int
	catalog      []models.ModelInfo
	lastModel    string
	lastResponse string
}

func (f *fakeKeyed) Tag() models.ProviderTag { return models.ProviderGemini }
func (f *fakeKeyed) DefaultModel() string    { return "gemini-2.5-flash" }

func (f *fakeKeyed) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	return f.catalog, nil
}

func (f *fakeKeyed) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	f.calls++
	f.lastModel = modelID
	if f.generateErr != nil {
		return "", f.generateErr
	}
	if f.lastResponse != "" {
		return f.lastResponse, nil
	}
	return "generated", nil
}

func (f *fakeKeyed) ProcessFiles(ctx context.Context, files []models.FileInput, documentName, modelID string) (string, error) {
	f.calls++
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return "# " + documentName, nil
}

func (f *fakeKeyed) Condense(ctx context.Context, content, modelID string) (string, error) {
	f.calls++
	return "condensed", nil
}

func (f *fakeKeyed) ValidateCredential(ctx context.Context, secret string) error {
	return f.validateErr
}

// fakeAccount implements AccountProvider with scriptable step outcomes
type fakeAccount struct {
	available    bool
	healthy      bool
	signedIn     bool
	signInErr    error
	connectionOK bool
	captureErr   error
	captured     *models.SessionCredential
	calls        int
}

func (f *fakeAccount) Tag() models.ProviderTag { return models.ProviderClaude }
func (f *fakeAccount) DefaultModel() string    { return "claude-3-5-haiku-latest" }

func (f *fakeAccount) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	return nil, nil
}

func (f *fakeAccount) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	f.calls++
	return "claude says", nil
}

func (f *fakeAccount) ProcessFiles(ctx context.Context, files []models.FileInput, documentName, modelID string) (string, error) {
	f.calls++
	return "# " + documentName, nil
}

func (f *fakeAccount) Condense(ctx context.Context, content, modelID string) (string, error) {
	f.calls++
	return "condensed", nil
}

func (f *fakeAccount) IsAvailable() bool { return f.available }

func (f *fakeAccount) WaitForReady(ctx context.Context, timeout time.Duration) bool {
	return f.available
}

func (f *fakeAccount) HealthCheck(ctx context.Context) interfaces.HealthResult {
	if f.healthy {
		return interfaces.HealthResult{Healthy: true}
	}
	return interfaces.HealthResult{Healthy: false, Message: "client not initialized"}
}

func (f *fakeAccount) CaptureSession(ctx context.Context, credential models.SessionCredential) error {
	if f.captureErr != nil {
		return f.captureErr
	}
	f.captured = &credential
	return nil
}

func (f *fakeAccount) IsSignedIn(ctx context.Context) bool { return f.signedIn }

func (f *fakeAccount) SignIn(ctx context.Context) error {
	if f.signInErr != nil {
		return f.signInErr
	}
	f.signedIn = true
	return nil
}

func (f *fakeAccount) SignOut(ctx context.Context) error {
	f.signedIn = false
	return nil
}

func (f *fakeAccount) TestConnection(ctx context.Context) bool { return f.connectionOK }

func (f *fakeAccount) GetAuthStatus(ctx context.Context) models.AuthStatus {
	return models.AuthStatus{IsSignedIn: f.signedIn}
}

func (f *fakeAccount) HandleMessage(ctx context.Context, message string, context []models.FileInput, modelID string) (string, error) {
	f.calls++
	return "handled: " + message, nil
}

func newTestOrchestrator(t *testing.T, gemini *fakeKeyed, claude *fakeAccount, settings *fakeSettings) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(gemini, claude, settings, nil, &common.ClaudeConfig{
		Model:          "claude-3-5-haiku-latest",
		ClientLoadWait: "10ms",
		RateLimit:      "1ms",
	}, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator() failed: %v", err)
	}
	return o
}

func TestGenerateNotReadyFailsFast(t *testing.T) {
	gemini := &fakeKeyed{}
	settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderGemini}}
	o := newTestOrchestrator(t, gemini, &fakeAccount{}, settings)

	_, err := o.Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("Generate() without readiness should fail")
	}
	if !interfaces.IsKind(err, interfaces.ErrKindServiceNotReady) {
		t.Errorf("error kind = %v, want service_not_ready", err)
	}
	if gemini.calls != 0 {
		t.Errorf("provider was called %d times, readiness gate must prevent network attempts", gemini.calls)
	}
}

func TestSetCredentialInvalid(t *testing.T) {
	gemini := &fakeKeyed{validateErr: errors.New("401 unauthorized")}
	settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderGemini}}
	o := newTestOrchestrator(t, gemini, &fakeAccount{}, settings)

	err := o.SetCredential(context.Background(), "bad-key")
	if !interfaces.IsKind(err, interfaces.ErrKindInvalidCredential) {
		t.Fatalf("error kind = %v, want invalid_credential", err)
	}
	if o.Ready(models.ProviderGemini) {
		t.Error("provider must not be ready after failed validation")
	}

	// The rejected secret is still persisted, flagged invalid, so the UI
	// can show what was tried
	record := settings.Get()
	if record.GeminiAPIKey != "bad-key" || record.GeminiKeyValid {
		t.Errorf("persisted record = {key: %q, valid: %v}, want rejected key flagged invalid",
			record.GeminiAPIKey, record.GeminiKeyValid)
	}
}

func TestSetCredentialValid(t *testing.T) {
	gemini := &fakeKeyed{catalog: []models.ModelInfo{{ID: "gemini-2.5-flash"}}}
	settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderGemini}}
	o := newTestOrchestrator(t, gemini, &fakeAccount{}, settings)

	if err := o.SetCredential(context.Background(), "good-key"); err != nil {
		t.Fatalf("SetCredential() failed: %v", err)
	}
	if !o.Ready(models.ProviderGemini) {
		t.Error("provider should be ready after successful validation")
	}

	record := settings.Get()
	if !record.GeminiKeyValid {
		t.Error("persisted record should mark the key valid")
	}
	if len(record.GeminiModels) != 1 {
		t.Errorf("catalog has %d models after refresh, want 1", len(record.GeminiModels))
	}

	if _, err := o.Generate(context.Background(), "hello"); err != nil {
		t.Errorf("Generate() after readiness failed: %v", err)
	}
}

func TestConnectInteractiveStepFailures(t *testing.T) {
	tests := []struct {
		name    string
		account *fakeAccount
		want    interfaces.AIErrorKind
	}{
		{
			name:    "client runtime never loads",
			account: &fakeAccount{available: false},
			want:    interfaces.ErrKindProviderUnavailable,
		},
		{
			name:    "health probe fails",
			account: &fakeAccount{available: true, healthy: false},
			want:    interfaces.ErrKindProviderUnhealthy,
		},
		{
			name:    "sign-in fails",
			account: &fakeAccount{available: true, healthy: true, signInErr: errors.New("token expired")},
			want:    interfaces.ErrKindSignInFailed,
		},
		{
			name:    "connectivity test fails",
			account: &fakeAccount{available: true, healthy: true, connectionOK: false},
			want:    interfaces.ErrKindConnectionTestFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderClaude}}
			o := newTestOrchestrator(t, &fakeKeyed{}, tt.account, settings)

			err := o.ConnectInteractive(context.Background())
			if !interfaces.IsKind(err, tt.want) {
				t.Errorf("error kind = %v, want %s", err, tt.want)
			}
			if o.Ready(models.ProviderClaude) {
				t.Error("provider must not be ready after failed connect")
			}
			if settings.Get().ClaudeConnected {
				t.Error("failed connect must not persist the connected flag")
			}
		})
	}
}

func TestCaptureSessionDelegatesToAccountProvider(t *testing.T) {
	account := &fakeAccount{}
	settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderClaude}}
	o := newTestOrchestrator(t, &fakeKeyed{}, account, settings)

	credential := models.SessionCredential{AccessToken: "sess-abc"}
	if err := o.CaptureSession(context.Background(), credential); err != nil {
		t.Fatalf("CaptureSession() failed: %v", err)
	}
	if account.captured == nil || account.captured.AccessToken != "sess-abc" {
		t.Errorf("captured = %+v, want the credential handed through", account.captured)
	}
	// Capture alone proves nothing; connect still has to verify it
	if o.Ready(models.ProviderClaude) {
		t.Error("capture must not mark the provider ready")
	}
}

func TestCaptureSessionWrapsProviderErrors(t *testing.T) {
	account := &fakeAccount{captureErr: errors.New("credential has no access token")}
	settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderClaude}}
	o := newTestOrchestrator(t, &fakeKeyed{}, account, settings)

	err := o.CaptureSession(context.Background(), models.SessionCredential{})
	if !interfaces.IsKind(err, interfaces.ErrKindSignInFailed) {
		t.Errorf("error kind = %v, want sign_in_failed", err)
	}
}

func TestConnectInteractiveSuccess(t *testing.T) {
	account := &fakeAccount{available: true, healthy: true, connectionOK: true}
	settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderClaude}}
	o := newTestOrchestrator(t, &fakeKeyed{}, account, settings)

	if err := o.ConnectInteractive(context.Background()); err != nil {
		t.Fatalf("ConnectInteractive() failed: %v", err)
	}
	if !o.Ready(models.ProviderClaude) {
		t.Error("provider should be ready after connect")
	}
	if !settings.Get().ClaudeConnected {
		t.Error("connected flag should persist")
	}
}

func TestSignOutResetsReadiness(t *testing.T) {
	account := &fakeAccount{available: true, healthy: true, connectionOK: true}
	settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderClaude}}
	o := newTestOrchestrator(t, &fakeKeyed{}, account, settings)

	if err := o.ConnectInteractive(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := o.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() failed: %v", err)
	}
	if o.Ready(models.ProviderClaude) {
		t.Error("provider must not be ready after sign-out")
	}

	_, err := o.Generate(context.Background(), "hello")
	if !interfaces.IsKind(err, interfaces.ErrKindServiceNotReady) {
		t.Errorf("Generate() after sign-out: error kind = %v, want service_not_ready", err)
	}
}

func TestSwitchProviderResetsModelAtomically(t *testing.T) {
	settings := &fakeSettings{record: models.ConfigRecord{
		ActiveProvider: models.ProviderGemini,
		ActiveModel:    "gemini-2.5-pro",
	}}
	o := newTestOrchestrator(t, &fakeKeyed{}, &fakeAccount{}, settings)

	before := settings.updates
	o.SwitchProvider(models.ProviderClaude)

	record := settings.Get()
	if record.ActiveProvider != models.ProviderClaude {
		t.Errorf("ActiveProvider = %q, want claude", record.ActiveProvider)
	}
	if record.ActiveModel != "claude-3-5-haiku-latest" {
		t.Errorf("ActiveModel = %q, want the claude default", record.ActiveModel)
	}
	// Provider and model change in one persisted write so a reload can
	// never observe a mismatched pair
	if settings.updates != before+1 {
		t.Errorf("switch used %d updates, want 1", settings.updates-before)
	}
}

func TestSwitchModel(t *testing.T) {
	settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderGemini}}
	o := newTestOrchestrator(t, &fakeKeyed{}, &fakeAccount{}, settings)

	o.SwitchModel("gemini-2.5-pro")
	if got := o.ActiveModel(); got != "gemini-2.5-pro" {
		t.Errorf("ActiveModel() = %q", got)
	}
}

func TestGenerateWrapsProviderErrors(t *testing.T) {
	gemini := &fakeKeyed{generateErr: errors.New("503 overloaded")}
	settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderGemini}}
	o := newTestOrchestrator(t, gemini, &fakeAccount{}, settings)

	if err := o.SetCredential(context.Background(), "good-key"); err != nil {
		t.Fatalf("SetCredential() failed: %v", err)
	}

	_, err := o.Generate(context.Background(), "hello")
	if !interfaces.IsKind(err, interfaces.ErrKindGenerationFailed) {
		t.Errorf("error kind = %v, want generation_failed", err)
	}
}

func TestHandleUserMessageRoutesByProvider(t *testing.T) {
	gemini := &fakeKeyed{lastResponse: "gemini says"}
	account := &fakeAccount{available: true, healthy: true, connectionOK: true}
	settings := &fakeSettings{record: models.ConfigRecord{ActiveProvider: models.ProviderGemini}}
	o := newTestOrchestrator(t, gemini, account, settings)

	if err := o.SetCredential(context.Background(), "good-key"); err != nil {
		t.Fatalf("SetCredential() failed: %v", err)
	}

	reply, err := o.HandleUserMessage(context.Background(), "what is this?", []models.FileInput{
		{Name: "a.md", Content: "alpha"},
	})
	if err != nil {
		t.Fatalf("HandleUserMessage() failed: %v", err)
	}
	if reply != "gemini says" {
		t.Errorf("reply = %q, want the keyed provider's generation", reply)
	}

	if err := o.ConnectInteractive(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	o.SwitchProvider(models.ProviderClaude)

	reply, err = o.HandleUserMessage(context.Background(), "what is this?", nil)
	if err != nil {
		t.Fatalf("HandleUserMessage() via claude failed: %v", err)
	}
	if reply != "handled: what is this?" {
		t.Errorf("reply = %q, want the account provider's context assembly", reply)
	}
}
