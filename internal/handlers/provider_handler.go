package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
	"github.com/contexo-app/contexo/internal/services/ai"
)

// ProviderHandler exposes provider readiness, credentials, sessions, and
// model selection over HTTP
type ProviderHandler struct {
	orchestrator *ai.Orchestrator
	settings     interfaces.SettingsService
	logger       arbor.ILogger
}

func NewProviderHandler(orchestrator *ai.Orchestrator, settings interfaces.SettingsService, logger arbor.ILogger) *ProviderHandler {
	return &ProviderHandler{
		orchestrator: orchestrator,
		settings:     settings,
		logger:       logger,
	}
}

// StatusHandler handles GET /api/providers/status
func (h *ProviderHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	record := h.settings.Get()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"active_provider": h.orchestrator.ActiveProvider(),
		"active_model":    h.orchestrator.ActiveModel(),
		"gemini": map[string]interface{}{
			"ready":     h.orchestrator.Ready(models.ProviderGemini),
			"key_set":   record.GeminiAPIKey != "",
			"key_valid": record.GeminiKeyValid,
		},
		"claude": map[string]interface{}{
			"ready":     h.orchestrator.Ready(models.ProviderClaude),
			"connected": record.ClaudeConnected,
			"auth":      h.orchestrator.AuthStatus(r.Context()),
		},
	})
}

// SetKeyHandler handles POST /api/providers/gemini/key
func (h *ProviderHandler) SetKeyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		APIKey string `json:"api_key"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		WriteError(w, http.StatusBadRequest, "Missing api_key")
		return
	}

	if err := h.orchestrator.SetCredential(r.Context(), req.APIKey); err != nil {
		h.logger.Warn().Err(err).Msg("Credential validation failed")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Credential accepted")
}

// SessionHandler handles POST /api/providers/claude/session - receives an
// externally captured session credential and stores it for ConnectHandler
// to verify
func (h *ProviderHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var credential models.SessionCredential
	if !DecodeJSON(w, r, &credential) {
		return
	}
	if strings.TrimSpace(credential.AccessToken) == "" {
		WriteError(w, http.StatusBadRequest, "Missing access_token")
		return
	}

	if err := h.orchestrator.CaptureSession(r.Context(), credential); err != nil {
		h.logger.Warn().Err(err).Msg("Session capture failed")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().Msg("Session credential captured")
	WriteSuccess(w, "Session captured")
}

// ConnectHandler handles POST /api/providers/claude/connect
func (h *ProviderHandler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.orchestrator.ConnectInteractive(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Interactive connect failed")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Connected")
}

// SignOutHandler handles POST /api/providers/claude/signout
func (h *ProviderHandler) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.orchestrator.SignOut(r.Context()); err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Signed out")
}

// SwitchHandler handles POST /api/providers/active - switches the active
// provider and resets the model to that provider's default in one step
func (h *ProviderHandler) SwitchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Provider models.ProviderTag `json:"provider"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Provider != models.ProviderGemini && req.Provider != models.ProviderClaude {
		WriteError(w, http.StatusBadRequest, "Unknown provider")
		return
	}

	h.orchestrator.SwitchProvider(req.Provider)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"active_provider": h.orchestrator.ActiveProvider(),
		"active_model":    h.orchestrator.ActiveModel(),
	})
}

// ModelHandler handles POST /api/providers/model
func (h *ProviderHandler) ModelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Model string `json:"model"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		WriteError(w, http.StatusBadRequest, "Missing model")
		return
	}

	h.orchestrator.SwitchModel(req.Model)
	WriteJSON(w, http.StatusOK, map[string]string{
		"active_model": h.orchestrator.ActiveModel(),
	})
}

// ModelsHandler handles GET /api/providers/models - returns the cached
// catalogs; refresh happens via RefreshHandler or the scheduler
func (h *ProviderHandler) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"gemini": h.orchestrator.Catalog(models.ProviderGemini),
		"claude": h.orchestrator.Catalog(models.ProviderClaude),
	})
}

// RefreshHandler handles POST /api/providers/refresh
func (h *ProviderHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.orchestrator.RefreshCatalog(r.Context()); err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"gemini": h.orchestrator.Catalog(models.ProviderGemini),
		"claude": h.orchestrator.Catalog(models.ProviderClaude),
	})
}
