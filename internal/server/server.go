package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leadsmith/leadgen/internal/async"
	"github.com/leadsmith/leadgen/internal/dispatch"
	"github.com/leadsmith/leadgen/internal/export"
	"github.com/leadsmith/leadgen/internal/pipeline"
	"github.com/leadsmith/leadgen/internal/store"
)

// Server wires the HTTP surface over the pipeline, store, dispatcher and
// export service.
type Server struct {
	store      store.LeadStore
	pipeline   *pipeline.Pipeline
	dispatcher *dispatch.Dispatcher
	exporter   *export.Service
	queue      async.Queue
	logger     *slog.Logger
	workers    int
}

func New(st store.LeadStore, p *pipeline.Pipeline, d *dispatch.Dispatcher, ex *export.Service, workers int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Server{
		store:      st,
		pipeline:   p,
		dispatcher: d,
		exporter:   ex,
		logger:     logger,
		workers:    workers,
	}
}

// WithQueue enables async ingest: requests carrying "async": true are
// queued and acknowledged with 202 instead of processed inline.
func (s *Server) WithQueue(q async.Queue) *Server {
	s.queue = q
	return s
}

// Router builds the chi mux with the v1 API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Post("/dispatch", s.handleDispatch)
		r.Get("/leads", s.handleListLeads)
		r.Get("/leads/{id}", s.handleGetLead)
		r.Patch("/leads/{id}/flags", s.handlePatchFlags)
		r.Get("/export", s.handleExport)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"req_id", middleware.GetReqID(r.Context()),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}
