package models

import "time"

// ProviderTag identifies one of the two AI providers
type ProviderTag string

const (
	// ProviderGemini is the keyed provider (explicit API credential)
	ProviderGemini ProviderTag = "gemini"
	// ProviderClaude is the account provider (interactive session)
	ProviderClaude ProviderTag = "claude"
)

// ModelInfo describes one entry of a provider's model catalog
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
}

// SessionCredential is an externally captured interactive session for the
// account provider. A zero ExpiresAt means the session does not expire.
type SessionCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// AuthStatus reports the account provider's session state
type AuthStatus struct {
	IsSignedIn        bool   `json:"is_signed_in"`
	Username          string `json:"username,omitempty"`
	ConnectionQuality string `json:"connection_quality"` // "good", "degraded", "offline"
	LastConnected     string `json:"last_connected,omitempty"`
}

// ConfigRecord is the flat persisted configuration consumed by the
// orchestrator. Every mutation is written through to settings storage.
type ConfigRecord struct {
	// Keyed provider credential state
	GeminiAPIKey   string `json:"gemini_api_key"`
	GeminiKeyValid bool   `json:"gemini_key_valid"`

	// Account provider session state
	ClaudeSessionToken string `json:"claude_session_token"` // serialized OAuth token
	ClaudeConnected    bool   `json:"claude_connected"`

	// Active provider/model selection. Exactly one provider is active.
	ActiveProvider ProviderTag `json:"active_provider"`
	ActiveModel    string      `json:"active_model"`

	// Cached model catalogs, one per provider
	GeminiModels []ModelInfo `json:"gemini_models,omitempty"`
	ClaudeModels []ModelInfo `json:"claude_models,omitempty"`

	// Processing preferences
	Combination CombinationOptions `json:"combination"`
}

// CatalogFor returns the cached catalog for a provider
func (c *ConfigRecord) CatalogFor(tag ProviderTag) []ModelInfo {
	if tag == ProviderClaude {
		return c.ClaudeModels
	}
	return c.GeminiModels
}
