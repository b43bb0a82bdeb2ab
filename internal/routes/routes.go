package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"videoserver/internal/config"
	"videoserver/internal/handlers"
	"videoserver/internal/logger"
	"videoserver/internal/repository/sqlite"
	"videoserver/internal/services/session"
	"videoserver/internal/services/websocket"
)

// SetupRoutes registers the API, the progress websocket, and the static UI.
func SetupRoutes(orch *session.Orchestrator, repo *sqlite.JobRepository,
	hub *websocket.HubService, cfg *config.Config, logger *logger.Logger) http.Handler {

	r := mux.NewRouter()
	store := orch.Store()

	// API endpoints
	r.HandleFunc("/api/upload", handlers.UploadHandler(orch, cfg, logger)).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs", handlers.ListJobsHandler(repo, logger)).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", handlers.GetJobHandler(store, repo, logger)).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}/video", handlers.VideoHandler(store)).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}/poster", handlers.PosterHandler(store)).Methods(http.MethodGet)
	r.HandleFunc("/api/health", handlers.HealthHandler(orch, cfg)).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", handlers.ProgressHandler(hub, logger))

	// Static single-page UI
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "static/index.html")
	}).Methods(http.MethodGet)

	return r
}
