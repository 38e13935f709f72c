package interfaces

import (
	"context"
	"time"

	"github.com/contexo-app/contexo/internal/models"
)

// AIProvider is the capability surface consumed identically from both
// concrete providers. Implementations own their transport, retry, and
// rate limiting; callers only see text in, text out.
type AIProvider interface {
	// Tag returns the provider's identity
	Tag() models.ProviderTag

	// DefaultModel returns the model used before any catalog has been fetched
	DefaultModel() string

	// ListModels fetches the provider's current model catalog
	ListModels(ctx context.Context) ([]models.ModelInfo, error)

	// Generate produces text from a plain prompt with the given model
	Generate(ctx context.Context, prompt, modelID string) (string, error)

	// ProcessFiles compiles the given files into a single markdown document
	ProcessFiles(ctx context.Context, files []models.FileInput, documentName, modelID string) (string, error)

	// Condense produces a shortened version of the given content
	Condense(ctx context.Context, content, modelID string) (string, error)
}

// KeyedCapabilities is the extra surface of the credential-based provider
type KeyedCapabilities interface {
	// ValidateCredential issues a lightweight call to verify the secret
	ValidateCredential(ctx context.Context, secret string) error
}

// HealthResult is the outcome of an account-provider health probe
type HealthResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// AccountCapabilities is the extra surface of the session-based provider.
// These operations are genuinely asymmetric with the keyed provider and
// are not forced into AIProvider.
type AccountCapabilities interface {
	// IsAvailable reports whether the provider client runtime is loaded
	IsAvailable() bool

	// WaitForReady blocks until the client runtime is loaded or the
	// timeout elapses, returning false on timeout
	WaitForReady(ctx context.Context, timeout time.Duration) bool

	// HealthCheck probes the provider without a network round trip
	HealthCheck(ctx context.Context) HealthResult

	// CaptureSession stores an externally obtained session credential so a
	// later SignIn can pick it up
	CaptureSession(ctx context.Context, credential models.SessionCredential) error

	// IsSignedIn reports whether a usable session exists
	IsSignedIn(ctx context.Context) bool

	// SignIn establishes an interactive session
	SignIn(ctx context.Context) error

	// SignOut discards the current session
	SignOut(ctx context.Context) error

	// TestConnection performs a network round trip distinct from HealthCheck
	TestConnection(ctx context.Context) bool

	// GetAuthStatus reports the session state for display
	GetAuthStatus(ctx context.Context) models.AuthStatus

	// HandleMessage answers a user message with provider-side context assembly
	HandleMessage(ctx context.Context, message string, context []models.FileInput, modelID string) (string, error)
}

// AIService is the unified generation contract the pipeline and chat
// controller consume. Implemented by the provider orchestrator.
type AIService interface {
	// Ready reports whether the given provider can serve generation calls
	Ready(tag models.ProviderTag) bool

	// ActiveProvider returns the currently selected provider tag
	ActiveProvider() models.ProviderTag

	// ActiveModel returns the currently selected model id
	ActiveModel() string

	// Generate runs a plain generation call against the active provider
	Generate(ctx context.Context, prompt string) (string, error)

	// ProcessFiles compiles files into one document via the active provider
	ProcessFiles(ctx context.Context, files []models.FileInput, documentName string) (string, error)

	// Condense shortens content via the active provider
	Condense(ctx context.Context, content string) (string, error)

	// HandleUserMessage answers a chat message with file context
	HandleUserMessage(ctx context.Context, message string, context []models.FileInput) (string, error)

	// GenerateWith runs a generation call against an explicit provider/model
	// pair, used by the pipeline analyze stage
	GenerateWith(ctx context.Context, tag models.ProviderTag, modelID, prompt string) (string, error)
}
