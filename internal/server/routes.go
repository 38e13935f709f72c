package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// UI
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/static/", s.serveStatic)

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - file registry
	mux.HandleFunc("/api/files", s.handleFilesRoute)
	mux.HandleFunc("/api/files/clear", s.app.FilesHandler.ClearHandler)
	mux.HandleFunc("/api/files/relationships", s.app.FilesHandler.RelationshipsHandler)
	mux.HandleFunc("/api/files/", s.app.FilesHandler.FileHandler) // GET/DELETE /{id}

	// API routes - URL ingestion
	mux.HandleFunc("/api/scrape", s.app.ScrapeHandler.ScrapeHandler)

	// API routes - pipeline
	mux.HandleFunc("/api/pipeline/start", s.app.PipelineHandler.StartHandler)
	mux.HandleFunc("/api/pipeline/cancel", s.app.PipelineHandler.CancelHandler)
	mux.HandleFunc("/api/pipeline/status", s.app.PipelineHandler.StatusHandler)
	mux.HandleFunc("/api/pipeline/result", s.app.PipelineHandler.ResultHandler)

	// API routes - providers
	mux.HandleFunc("/api/providers/status", s.app.ProviderHandler.StatusHandler)
	mux.HandleFunc("/api/providers/gemini/key", s.app.ProviderHandler.SetKeyHandler)
	mux.HandleFunc("/api/providers/claude/session", s.app.ProviderHandler.SessionHandler)
	mux.HandleFunc("/api/providers/claude/connect", s.app.ProviderHandler.ConnectHandler)
	mux.HandleFunc("/api/providers/claude/signout", s.app.ProviderHandler.SignOutHandler)
	mux.HandleFunc("/api/providers/active", s.app.ProviderHandler.SwitchHandler)
	mux.HandleFunc("/api/providers/model", s.app.ProviderHandler.ModelHandler)
	mux.HandleFunc("/api/providers/models", s.app.ProviderHandler.ModelsHandler)
	mux.HandleFunc("/api/providers/refresh", s.app.ProviderHandler.RefreshHandler)

	// API routes - chat
	mux.HandleFunc("/api/chat", s.app.ChatHandler.SendHandler)
	mux.HandleFunc("/api/chat/history", s.app.ChatHandler.HistoryHandler)
	mux.HandleFunc("/api/chat/clear", s.app.ChatHandler.ClearHandler)

	// API routes - export
	mux.HandleFunc("/api/export", s.app.ExportHandler.DownloadHandler)
	mux.HandleFunc("/api/condense", s.app.CondenseHandler.Handle)

	// API routes - system
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	return mux
}

// handleFilesRoute dispatches /api/files by method: GET lists, POST uploads
func (s *Server) handleFilesRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.FilesHandler.ListHandler(w, r)
	case http.MethodPost:
		s.app.FilesHandler.UploadHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
