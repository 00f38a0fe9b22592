package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/mdbuild/internal/config"
	"github.com/dgallion1/mdbuild/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for mdbuild.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	out          pipeline.FSSink
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. out must be the sink the
// orchestrator writes to.
func NewServer(orch *pipeline.Orchestrator, out pipeline.FSSink, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		out:          out,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/render", s.handleRender)
		r.Post("/api/builds", s.handleBuild)
		r.Get("/api/builds/{jobID}", s.handleBuildStatus)
		r.Get("/api/stats", s.handleStats)

		r.Get("/api/documents/*", s.handleGetDocument)
		r.Delete("/api/documents/*", s.handleDeleteDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
