package interfaces

import (
	"errors"
	"fmt"
)

// AIErrorKind is the stable tag callers branch on. Provider-specific
// failures are always re-wrapped into one of these kinds at the
// orchestrator boundary; callers never inspect provider error shapes.
type AIErrorKind string

const (
	// ErrKindInvalidCredential - keyed-provider validation rejected the supplied secret
	ErrKindInvalidCredential AIErrorKind = "invalid_credential"
	// ErrKindProviderUnavailable - account-provider client failed to initialize within its bound
	ErrKindProviderUnavailable AIErrorKind = "provider_unavailable"
	// ErrKindProviderUnhealthy - account-provider health probe reported not-healthy
	ErrKindProviderUnhealthy AIErrorKind = "provider_unhealthy"
	// ErrKindSignInFailed - interactive sign-in did not complete or could not be verified
	ErrKindSignInFailed AIErrorKind = "sign_in_failed"
	// ErrKindConnectionTestFailed - post-signin connectivity check failed
	ErrKindConnectionTestFailed AIErrorKind = "connection_test_failed"
	// ErrKindServiceNotReady - a generation call was attempted while the provider is not ready
	ErrKindServiceNotReady AIErrorKind = "service_not_ready"
	// ErrKindGenerationFailed - the provider's generation call itself failed
	ErrKindGenerationFailed AIErrorKind = "generation_failed"
	// ErrKindCompilationFailed - the provider's file-compilation call failed
	ErrKindCompilationFailed AIErrorKind = "compilation_failed"
	// ErrKindCondensationFailed - the provider's condensation call failed
	ErrKindCondensationFailed AIErrorKind = "condensation_failed"
	// ErrKindCapacityExceeded - a registry add would exceed the configured maximum
	ErrKindCapacityExceeded AIErrorKind = "capacity_exceeded"
	// ErrKindPipelineStepFailed - a pipeline step's core operation failed, terminating the run
	ErrKindPipelineStepFailed AIErrorKind = "pipeline_step_failed"
)

// AIError carries a stable kind plus the original human-readable message
type AIError struct {
	Kind     AIErrorKind
	Provider string // provider tag, when the failure is provider-scoped
	Message  string
	Err      error // wrapped cause, may be nil
}

func (e *AIError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AIError) Unwrap() error {
	return e.Err
}

// NewAIError creates a tagged error wrapping an optional cause
func NewAIError(kind AIErrorKind, provider, message string, cause error) *AIError {
	return &AIError{Kind: kind, Provider: provider, Message: message, Err: cause}
}

// IsKind reports whether err carries the given kind anywhere in its chain
func IsKind(err error, kind AIErrorKind) bool {
	var ae *AIError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// ErrKeyNotFound is returned when a key is not found in the key/value store
var ErrKeyNotFound = errors.New("key not found")
