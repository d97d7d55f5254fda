package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/bookchunk/internal/config"
	"github.com/dgallion1/bookchunk/internal/embed"
	"github.com/dgallion1/bookchunk/internal/metrics"
	"github.com/dgallion1/bookchunk/internal/pathstore"
	"github.com/dgallion1/bookchunk/internal/pipeline"
	"github.com/dgallion1/bookchunk/internal/store"
)

// Deps are the collaborators the handlers use. Mirror, Stats and Metrics
// may be nil.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Store        *store.Store
	Mirror       *pathstore.Client
	Embedder     embed.Embedder
	Stats        *embed.LatencyStats
	Metrics      *metrics.Metrics
}

// Server is the HTTP API server for bookchunk.
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		deps: deps,
		log:  log,
		cfg:  cfg,
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
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Post("/api/chunk", s.handleChunk)
		r.Get("/api/stats/embed", s.handleEmbedStats)

		r.Get("/api/books", s.handleListBooks)
		r.Get("/api/books/{bookID}/chunks", s.handleBookChunks)
		r.Delete("/api/books/{bookID}", s.handleDeleteBook)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	queue := 0
	if s.deps.Orchestrator != nil {
		queue = s.deps.Orchestrator.QueueDepth()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "queue_depth": queue})
}
