// Package api exposes the Task Orchestrator's external operations over
// HTTP: starting, inspecting, cancelling, and listing scheduling tasks,
// plus the progress stream, the stage-log read, and Prometheus exposition.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/veritas-mfg/tobacco-aps/internal/config"
	"github.com/veritas-mfg/tobacco-aps/internal/db"
	"github.com/veritas-mfg/tobacco-aps/internal/orchestrator"
	"github.com/veritas-mfg/tobacco-aps/internal/queue"
)

// Server is the HTTP front door onto the Orchestrator. It never touches the
// pipeline directly — every route is a thin adapter onto
// orchestrator.Orchestrator or a read-only db.Queries query.
type Server struct {
	config *config.Config
	db     *db.Queries
	orch   *orchestrator.Orchestrator
	nats   *queue.Manager
	router *mux.Router
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, queries *db.Queries, orch *orchestrator.Orchestrator, natsManager *queue.Manager) *Server {
	s := &Server{
		config: cfg,
		db:     queries,
		orch:   orch,
		nats:   natsManager,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Router returns the configured HTTP router with CORS applied.
func (s *Server) Router() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{s.config.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: s.config.CORSAllowCredentials,
		MaxAge:           300,
	})

	return c.Handler(s.router)
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	root := s.router.PathPrefix("/api").Subrouter()

	root.HandleFunc("/health", s.handleHealth).Methods("GET")

	tasks := root.PathPrefix("/schedule/tasks").Subrouter()
	tasks.HandleFunc("", s.handleStartTask).Methods("POST")
	tasks.HandleFunc("", s.handleListTasks).Methods("GET")
	tasks.HandleFunc("/{taskId}", s.handleGetTask).Methods("GET")
	tasks.HandleFunc("/{taskId}/cancel", s.handleCancelTask).Methods("POST")
	tasks.HandleFunc("/{taskId}/progress", s.handleTaskProgressSSE).Methods("GET")
	tasks.HandleFunc("/{taskId}/logs", s.handleListTaskLogs).Methods("GET")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// handleHealth is a liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
