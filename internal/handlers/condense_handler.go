package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/services/pipeline"
)

// CondenseHandler produces a shortened version of a document through the
// active provider
type CondenseHandler struct {
	ai       interfaces.AIService
	pipeline *pipeline.Service
	logger   arbor.ILogger
}

func NewCondenseHandler(ai interfaces.AIService, p *pipeline.Service, logger arbor.ILogger) *CondenseHandler {
	return &CondenseHandler{
		ai:       ai,
		pipeline: p,
		logger:   logger,
	}
}

// CondenseRequest carries optional content to condense. When empty, the
// last combination result is used.
type CondenseRequest struct {
	Content string `json:"content,omitempty"`
}

// Handle handles POST /api/condense
func (h *CondenseHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req CondenseRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		result := h.pipeline.Result()
		if result == nil {
			WriteError(w, http.StatusNotFound, "No content to condense, provide content or run the pipeline first")
			return
		}
		content = result.Content
	}

	condensed, err := h.ai.Condense(r.Context(), content)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Condensation failed")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Int("original_chars", len(content)).
		Int("condensed_chars", len(condensed)).
		Msg("Document condensed")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"content":         condensed,
		"original_chars":  len(content),
		"condensed_chars": len(condensed),
	})
}
