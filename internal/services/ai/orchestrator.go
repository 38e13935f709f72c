package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
)

// KeyedProvider is the full surface of the credential-based provider
type KeyedProvider interface {
	interfaces.AIProvider
	interfaces.KeyedCapabilities
}

// AccountProvider is the full surface of the session-based provider
type AccountProvider interface {
	interfaces.AIProvider
	interfaces.AccountCapabilities
}

// Orchestrator presents one generation contract regardless of which
// provider is active. It tracks each provider's readiness independently,
// persists the user's provider/model choice, and translates provider
// failures into the stable error taxonomy. Readiness is a boolean gate in
// front of every generation call: a caller always knows in O(1) whether a
// call will attempt a network round trip or fail fast.
type Orchestrator struct {
	gemini   KeyedProvider
	claude   AccountProvider
	settings interfaces.SettingsService
	events   interfaces.EventService
	logger   arbor.ILogger

	clientLoadWait time.Duration

	mu    sync.RWMutex
	ready map[models.ProviderTag]bool
}

// NewOrchestrator wires the two providers behind the unified contract
func NewOrchestrator(
	gemini KeyedProvider,
	claude AccountProvider,
	settings interfaces.SettingsService,
	events interfaces.EventService,
	config *common.ClaudeConfig,
	logger arbor.ILogger,
) (*Orchestrator, error) {
	loadWait, err := time.ParseDuration(config.ClientLoadWait)
	if err != nil {
		return nil, fmt.Errorf("invalid client load wait duration '%s': %w", config.ClientLoadWait, err)
	}

	return &Orchestrator{
		gemini:         gemini,
		claude:         claude,
		settings:       settings,
		events:         events,
		logger:         logger,
		clientLoadWait: loadWait,
		ready: map[models.ProviderTag]bool{
			models.ProviderGemini: false,
			models.ProviderClaude: false,
		},
	}, nil
}

// provider returns the AIProvider for a tag
func (o *Orchestrator) provider(tag models.ProviderTag) interfaces.AIProvider {
	if tag == models.ProviderClaude {
		return o.claude
	}
	return o.gemini
}

// Ready reports whether the given provider can serve generation calls
func (o *Orchestrator) Ready(tag models.ProviderTag) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ready[tag]
}

func (o *Orchestrator) setReady(tag models.ProviderTag, ready bool) {
	o.mu.Lock()
	o.ready[tag] = ready
	o.mu.Unlock()
}

// ActiveProvider returns the currently selected provider tag
func (o *Orchestrator) ActiveProvider() models.ProviderTag {
	return o.settings.Get().ActiveProvider
}

// ActiveModel returns the currently selected model id
func (o *Orchestrator) ActiveModel() string {
	record := o.settings.Get()
	if record.ActiveModel != "" {
		return record.ActiveModel
	}
	return o.provider(record.ActiveProvider).DefaultModel()
}

// Bootstrap re-validates persisted credentials at startup, best effort.
// Failures leave the provider Uninitialized and are only logged; the user
// re-supplies credentials through the normal paths.
func (o *Orchestrator) Bootstrap(ctx context.Context) {
	record := o.settings.Get()

	if record.GeminiAPIKey != "" && record.GeminiKeyValid {
		if err := o.SetCredential(ctx, record.GeminiAPIKey); err != nil {
			o.logger.Warn().Err(err).Msg("Persisted Gemini credential no longer validates")
		}
	}

	if record.ClaudeConnected {
		if err := o.ConnectInteractive(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("Persisted Claude session no longer connects")
		}
	}
}

// SetCredential stores and validates the keyed provider's secret. On
// success the provider becomes Ready and a catalog refresh is attempted;
// a failed catalog fetch does not revert readiness. On failure the secret
// is still persisted (with the invalid flag) so the UI can show what was
// tried, and the call fails with InvalidCredential.
func (o *Orchestrator) SetCredential(ctx context.Context, secret string) error {
	if err := o.gemini.ValidateCredential(ctx, secret); err != nil {
		o.setReady(models.ProviderGemini, false)
		o.settings.Update(func(r *models.ConfigRecord) {
			r.GeminiAPIKey = secret
			r.GeminiKeyValid = false
		})
		return interfaces.NewAIError(interfaces.ErrKindInvalidCredential, string(models.ProviderGemini),
			"credential validation rejected the supplied key", err)
	}

	o.setReady(models.ProviderGemini, true)
	o.settings.Update(func(r *models.ConfigRecord) {
		r.GeminiAPIKey = secret
		r.GeminiKeyValid = true
	})

	// Catalog fetch is a second network call; its failure leaves the
	// catalog empty, to be retried later, and never reverts readiness.
	if err := o.RefreshCatalog(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("Catalog fetch after credential validation failed")
	}

	o.logger.Info().Str("provider", string(models.ProviderGemini)).Msg("Provider ready")
	return nil
}

// CaptureSession stores an externally obtained account session. Readiness
// is untouched; ConnectInteractive verifies the captured session end to end.
func (o *Orchestrator) CaptureSession(ctx context.Context, credential models.SessionCredential) error {
	if err := o.claude.CaptureSession(ctx, credential); err != nil {
		return interfaces.NewAIError(interfaces.ErrKindSignInFailed, string(models.ProviderClaude),
			err.Error(), err)
	}
	return nil
}

// ConnectInteractive runs the account provider's connect sequence. Each
// step fails independently with a specific, actionable error.
func (o *Orchestrator) ConnectInteractive(ctx context.Context) error {
	// (a) client runtime load, bounded
	if !o.claude.WaitForReady(ctx, o.clientLoadWait) {
		o.setReady(models.ProviderClaude, false)
		return interfaces.NewAIError(interfaces.ErrKindProviderUnavailable, string(models.ProviderClaude),
			fmt.Sprintf("client runtime did not load within %s", o.clientLoadWait), nil)
	}

	// (b) health probe
	if health := o.claude.HealthCheck(ctx); !health.Healthy {
		o.setReady(models.ProviderClaude, false)
		return interfaces.NewAIError(interfaces.ErrKindProviderUnhealthy, string(models.ProviderClaude),
			health.Message, nil)
	}

	// (c) session check, then sign-in (may surface a user-facing prompt)
	if !o.claude.IsSignedIn(ctx) {
		o.logger.Debug().Msg("No existing session, initiating sign-in")
	}
	if err := o.claude.SignIn(ctx); err != nil {
		o.setReady(models.ProviderClaude, false)
		return interfaces.NewAIError(interfaces.ErrKindSignInFailed, string(models.ProviderClaude),
			err.Error(), err)
	}

	// (d) connectivity test, distinct from the health probe
	if !o.claude.TestConnection(ctx) {
		o.setReady(models.ProviderClaude, false)
		return interfaces.NewAIError(interfaces.ErrKindConnectionTestFailed, string(models.ProviderClaude),
			"connectivity test failed after sign-in", nil)
	}

	o.setReady(models.ProviderClaude, true)
	o.settings.Update(func(r *models.ConfigRecord) {
		r.ClaudeConnected = true
	})

	if err := o.RefreshCatalogFor(ctx, models.ProviderClaude); err != nil {
		o.logger.Warn().Err(err).Msg("Catalog fetch after connect failed")
	}

	o.logger.Info().Str("provider", string(models.ProviderClaude)).Msg("Provider ready")
	return nil
}

// SignOut disconnects the account provider and resets its readiness
func (o *Orchestrator) SignOut(ctx context.Context) error {
	if err := o.claude.SignOut(ctx); err != nil {
		return err
	}
	o.setReady(models.ProviderClaude, false)
	return nil
}

// SwitchProvider sets the active provider and resets the active model to
// that provider's default. Provider and model persist as one write so a
// reload never observes a mismatched pair. Readiness is not validated here.
func (o *Orchestrator) SwitchProvider(tag models.ProviderTag) {
	defaultModel := o.provider(tag).DefaultModel()
	o.settings.Update(func(r *models.ConfigRecord) {
		r.ActiveProvider = tag
		r.ActiveModel = defaultModel
	})
	o.logger.Info().
		Str("provider", string(tag)).
		Str("model", defaultModel).
		Msg("Switched active provider")
}

// SwitchModel sets the active model for the active provider. The id is
// trusted even when the catalog is empty.
func (o *Orchestrator) SwitchModel(modelID string) {
	o.settings.Update(func(r *models.ConfigRecord) {
		r.ActiveModel = modelID
	})
	o.logger.Info().Str("model", modelID).Msg("Switched active model")
}

// Catalog returns the cached model catalog for a provider. The cache is
// trusted even when stale; RefreshCatalogFor replaces it.
func (o *Orchestrator) Catalog(tag models.ProviderTag) []models.ModelInfo {
	record := o.settings.Get()
	return record.CatalogFor(tag)
}

// RefreshCatalog re-fetches the active provider's model list. A no-op,
// not an error, when the provider is not ready.
func (o *Orchestrator) RefreshCatalog(ctx context.Context) error {
	return o.RefreshCatalogFor(ctx, o.ActiveProvider())
}

// RefreshCatalogFor re-fetches a specific provider's model list
func (o *Orchestrator) RefreshCatalogFor(ctx context.Context, tag models.ProviderTag) error {
	if !o.Ready(tag) {
		return nil
	}

	catalog, err := o.provider(tag).ListModels(ctx)
	if err != nil {
		return fmt.Errorf("catalog refresh failed: %w", err)
	}

	o.settings.Update(func(r *models.ConfigRecord) {
		if tag == models.ProviderClaude {
			r.ClaudeModels = catalog
		} else {
			r.GeminiModels = catalog
		}
	})

	if o.events != nil {
		o.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventCatalogRefreshed,
			Payload: map[string]interface{}{"provider": tag, "models": len(catalog)},
		})
	}

	return nil
}

// gate fails fast with ServiceNotReady when the provider cannot serve
func (o *Orchestrator) gate(tag models.ProviderTag) error {
	if !o.Ready(tag) {
		return interfaces.NewAIError(interfaces.ErrKindServiceNotReady, string(tag),
			fmt.Sprintf("%s provider is not ready; supply credentials or connect first", tag), nil)
	}
	return nil
}

// Generate runs a plain generation call against the active provider
func (o *Orchestrator) Generate(ctx context.Context, prompt string) (string, error) {
	tag := o.ActiveProvider()
	if err := o.gate(tag); err != nil {
		return "", err
	}

	text, err := o.provider(tag).Generate(ctx, prompt, o.ActiveModel())
	if err != nil {
		return "", interfaces.NewAIError(interfaces.ErrKindGenerationFailed, string(tag), err.Error(), err)
	}
	return text, nil
}

// GenerateWith runs a generation call against an explicit provider/model
// pair, used by the pipeline analyze stage
func (o *Orchestrator) GenerateWith(ctx context.Context, tag models.ProviderTag, modelID, prompt string) (string, error) {
	if err := o.gate(tag); err != nil {
		return "", err
	}

	text, err := o.provider(tag).Generate(ctx, prompt, modelID)
	if err != nil {
		return "", interfaces.NewAIError(interfaces.ErrKindGenerationFailed, string(tag), err.Error(), err)
	}
	return text, nil
}

// ProcessFiles compiles files into one document via the active provider
func (o *Orchestrator) ProcessFiles(ctx context.Context, files []models.FileInput, documentName string) (string, error) {
	tag := o.ActiveProvider()
	if err := o.gate(tag); err != nil {
		return "", err
	}

	text, err := o.provider(tag).ProcessFiles(ctx, files, documentName, o.ActiveModel())
	if err != nil {
		return "", interfaces.NewAIError(interfaces.ErrKindCompilationFailed, string(tag), err.Error(), err)
	}
	return text, nil
}

// Condense shortens content via the active provider
func (o *Orchestrator) Condense(ctx context.Context, content string) (string, error) {
	tag := o.ActiveProvider()
	if err := o.gate(tag); err != nil {
		return "", err
	}

	text, err := o.provider(tag).Condense(ctx, content, o.ActiveModel())
	if err != nil {
		return "", interfaces.NewAIError(interfaces.ErrKindCondensationFailed, string(tag), err.Error(), err)
	}
	return text, nil
}

// HandleUserMessage answers a chat message with file context. The two
// providers intentionally diverge here: the keyed provider gets context
// concatenated into a plain generation prompt, the account provider
// applies its own context assembly.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, message string, context []models.FileInput) (string, error) {
	tag := o.ActiveProvider()
	if err := o.gate(tag); err != nil {
		return "", err
	}

	var text string
	var err error
	if tag == models.ProviderClaude {
		text, err = o.claude.HandleMessage(ctx, message, context, o.ActiveModel())
	} else {
		text, err = o.gemini.Generate(ctx, buildContextPrompt(message, context), o.ActiveModel())
	}
	if err != nil {
		return "", interfaces.NewAIError(interfaces.ErrKindGenerationFailed, string(tag), err.Error(), err)
	}
	return text, nil
}

// AuthStatus reports the account provider's session state
func (o *Orchestrator) AuthStatus(ctx context.Context) models.AuthStatus {
	return o.claude.GetAuthStatus(ctx)
}
