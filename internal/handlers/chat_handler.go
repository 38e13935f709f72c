package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/services/chat"
)

// ChatHandler handles conversation HTTP requests
type ChatHandler struct {
	chat   *chat.Service
	logger arbor.ILogger
}

func NewChatHandler(chatService *chat.Service, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{
		chat:   chatService,
		logger: logger,
	}
}

// SendHandler handles POST /api/chat
func (h *ChatHandler) SendHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, http.StatusBadRequest, "Missing message")
		return
	}

	reply, err := h.chat.Send(r.Context(), req.Message)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Chat message failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, reply)
}

// HistoryHandler handles GET /api/chat/history
func (h *ChatHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	history := h.chat.History()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages": history,
		"count":    len(history),
	})
}

// ClearHandler handles POST /api/chat/clear
func (h *ChatHandler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	h.chat.Clear()
	WriteSuccess(w, "Conversation cleared")
}
