package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/models"
	"github.com/contexo-app/contexo/internal/services/combine"
	"github.com/contexo-app/contexo/internal/services/registry"
)

// FilesHandler handles file registry HTTP requests
type FilesHandler struct {
	registry *registry.Service
	combiner *combine.Service
	logger   arbor.ILogger
}

func NewFilesHandler(reg *registry.Service, combiner *combine.Service, logger arbor.ILogger) *FilesHandler {
	return &FilesHandler{
		registry: reg,
		combiner: combiner,
		logger:   logger,
	}
}

// ListHandler handles GET /api/files
func (h *FilesHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	files := h.registry.List()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
		"count": len(files),
	})
}

// UploadHandler handles POST /api/files - adds one or more files
func (h *FilesHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Files []models.FileInput `json:"files"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Files) == 0 {
		WriteError(w, http.StatusBadRequest, "No files provided")
		return
	}
	for _, f := range req.Files {
		if strings.TrimSpace(f.Name) == "" {
			WriteError(w, http.StatusBadRequest, "Every file needs a name")
			return
		}
	}

	added, err := h.registry.AddBatch(req.Files)
	if err != nil {
		h.logger.Warn().Err(err).Int("files", len(req.Files)).Msg("File upload rejected")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().Int("added", len(added)).Msg("Files uploaded")
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"files": added,
		"count": h.registry.Count(),
	})
}

// FileHandler handles GET/DELETE /api/files/{id}
func (h *FilesHandler) FileHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "Invalid file id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		file, ok := h.registry.Get(id)
		if !ok {
			WriteError(w, http.StatusNotFound, "File not found")
			return
		}
		WriteJSON(w, http.StatusOK, file)

	case http.MethodDelete:
		if err := h.registry.Remove(id); err != nil {
			WriteError(w, http.StatusNotFound, "File not found")
			return
		}
		h.logger.Info().Str("file_id", id).Msg("File removed")
		WriteSuccess(w, "File removed")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ClearHandler handles POST /api/files/clear
func (h *FilesHandler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	h.registry.Clear()
	h.logger.Info().Msg("File registry cleared")
	WriteSuccess(w, "All files removed")
}

// RelationshipsHandler handles GET /api/files/relationships - derives
// pairwise content relationships over the current file set
func (h *FilesHandler) RelationshipsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	files := h.registry.Snapshot()
	refs := make([]*models.UploadedFile, len(files))
	for i := range files {
		refs[i] = &files[i]
	}

	relationships := h.combiner.AnalyzeRelationships(refs)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"relationships": relationships,
		"count":         len(relationships),
	})
}
