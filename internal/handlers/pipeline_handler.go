package handlers

import (
	"context"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/models"
	"github.com/contexo-app/contexo/internal/services/pipeline"
)

// PipelineHandler controls processing runs
type PipelineHandler struct {
	pipeline *pipeline.Service
	logger   arbor.ILogger

	// Runs outlive the originating request; background steps use this
	// context rather than the request's.
	appCtx context.Context
}

func NewPipelineHandler(appCtx context.Context, p *pipeline.Service, logger arbor.ILogger) *PipelineHandler {
	return &PipelineHandler{
		pipeline: p,
		logger:   logger,
		appCtx:   appCtx,
	}
}

// StartHandler handles POST /api/pipeline/start
func (h *PipelineHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var config models.PipelineConfig
	if !DecodeJSON(w, r, &config) {
		return
	}

	run, err := h.pipeline.Start(h.appCtx, config)
	if err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	h.logger.Info().Str("run_id", run.ID).Msg("Pipeline run accepted")
	WriteJSON(w, http.StatusAccepted, run)
}

// CancelHandler handles POST /api/pipeline/cancel
func (h *PipelineHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	h.pipeline.Cancel()
	WriteSuccess(w, "Cancellation requested")
}

// StatusHandler handles GET /api/pipeline/status
func (h *PipelineHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	run := h.pipeline.Status()
	if run == nil {
		WriteJSON(w, http.StatusOK, map[string]string{"status": string(models.RunStatusIdle)})
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// ResultHandler handles GET /api/pipeline/result
func (h *PipelineHandler) ResultHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	result := h.pipeline.Result()
	if result == nil {
		WriteError(w, http.StatusNotFound, "No combination result available")
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
