// Package server provides the HTTP API for reviewdesk.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/collab"
	"github.com/hyperjump/reviewdesk/internal/config"
	"github.com/hyperjump/reviewdesk/internal/intake"
	"github.com/hyperjump/reviewdesk/pkg/utils"
)

// Server is the HTTP server for the review API.
type Server struct {
	pipeline *intake.Pipeline
	analyzer *collab.Orchestrator
	config   *config.ServerConfig
	logger   *zap.Logger
	probes   []Probe
	dbPath   string
	idxPath  string
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithProbe adds a component to the system status report.
func WithProbe(name string, check func(ctx context.Context) (any, error)) Option {
	return func(s *Server) {
		s.probes = append(s.probes, Probe{Name: name, Check: check})
	}
}

// WithDiskPaths enables disk usage reporting for the local database and index.
func WithDiskPaths(databasePath, indexPath string) Option {
	return func(s *Server) {
		s.dbPath = databasePath
		s.idxPath = indexPath
	}
}

// NewServer creates a server with the given dependencies. analyzer may be nil.
func NewServer(
	pipeline *intake.Pipeline,
	analyzer *collab.Orchestrator,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		pipeline: pipeline,
		analyzer: analyzer,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	timeout := 120 * time.Second
	if s.config != nil && s.config.RequestTimeout > 0 {
		timeout = s.config.RequestTimeout
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system/status", s.handleSystemStatus)

		r.Get("/companies", s.handleListCompanies)
		r.Post("/companies", s.handleCreateCompany)
		r.Delete("/companies/{id}", s.handleDeleteCompany)

		r.Get("/departments", s.handleListDepartments)
		r.Post("/departments", s.handleCreateDepartment)

		r.Get("/reviews", s.handleListReviews)
		r.Post("/reviews", s.handleCreateReview)
		r.Get("/reviews/search", s.handleSearchReviews)
		r.Get("/reviews/sentiment-stats", s.handleSentimentStats)
		r.Post("/reviews/analyze", s.handleAnalyzeReviews)
		r.Get("/reviews/{id}", s.handleGetReview)
		r.Delete("/reviews/{id}", s.handleDeleteReview)
		r.Get("/reviews/{id}/logs", s.handleReviewLogs)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
