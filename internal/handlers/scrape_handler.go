package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/models"
	"github.com/contexo-app/contexo/internal/services/registry"
	"github.com/contexo-app/contexo/internal/services/scrape"
)

// ScrapeHandler ingests web pages into the file registry
type ScrapeHandler struct {
	scraper  *scrape.Service
	registry *registry.Service
	logger   arbor.ILogger
}

func NewScrapeHandler(scraper *scrape.Service, reg *registry.Service, logger arbor.ILogger) *ScrapeHandler {
	return &ScrapeHandler{
		scraper:  scraper,
		registry: reg,
		logger:   logger,
	}
}

// ScrapeHandler handles POST /api/scrape - fetches a URL and adds the
// converted markdown as a registry file
func (h *ScrapeHandler) ScrapeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		WriteError(w, http.StatusBadRequest, "Missing url")
		return
	}

	result, err := h.scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		h.logger.Warn().Err(err).Str("url", req.URL).Msg("Scrape failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	name := result.Title
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}

	file, err := h.registry.Add(name, result.Markdown, models.FileTypeMarkdown)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("url", req.URL).
		Str("file_id", file.ID).
		Msg("Scraped page added to registry")

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"file":       file,
		"source_url": result.URL,
		"fetched_at": result.FetchedAt,
	})
}
