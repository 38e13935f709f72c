package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/models"
	"github.com/contexo-app/contexo/internal/services/export"
	"github.com/contexo-app/contexo/internal/services/pipeline"
)

// ExportHandler renders the last combination result for download
type ExportHandler struct {
	exporter *export.Service
	pipeline *pipeline.Service
	logger   arbor.ILogger
}

func NewExportHandler(exporter *export.Service, p *pipeline.Service, logger arbor.ILogger) *ExportHandler {
	return &ExportHandler{
		exporter: exporter,
		pipeline: p,
		logger:   logger,
	}
}

// DownloadHandler handles GET /api/export?format=markdown|html|pdf&name=...
func (h *ExportHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	result := h.pipeline.Result()
	if result == nil {
		WriteError(w, http.StatusNotFound, "No combined document to export, run the pipeline first")
		return
	}

	format := models.OutputFormat(r.URL.Query().Get("format"))
	name := r.URL.Query().Get("name")

	rendered, err := h.exporter.Render(result.Content, name, format)
	if err != nil {
		h.logger.Warn().Err(err).Str("format", string(format)).Msg("Export failed")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().
		Str("filename", rendered.Filename).
		Int("bytes", len(rendered.Data)).
		Msg("Document exported")

	w.Header().Set("Content-Type", rendered.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rendered.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(rendered.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(rendered.Data)
}
