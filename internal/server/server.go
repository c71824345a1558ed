// Package server provides the HTML front end and JSON API for ruiji.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/recommend"
	"github.com/hyperjump/ruiji/internal/similarity"
)

// Responses smaller than this are sent uncompressed.
const gzipMinSize = 512

//go:embed templates/*.html
var templateFS embed.FS

// Reloader rebuilds the catalog on demand.
type Reloader interface {
	Reload(ctx context.Context) error
	LastLoad() time.Time
}

// Server is the HTTP server for recommendations and ad-hoc similarity.
type Server struct {
	service  *recommend.Service
	computer *similarity.Computer
	reloader Reloader
	config   *config.Config
	logger   *zap.Logger
	home     *template.Template
	gzip     func(http.Handler) http.HandlerFunc
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithComputer sets the Computer used by the similarity endpoint.
func WithComputer(c *similarity.Computer) Option {
	return func(s *Server) { s.computer = c }
}

// WithReloader enables POST /api/v1/reload.
func WithReloader(r Reloader) Option {
	return func(s *Server) { s.reloader = r }
}

// NewServer creates a server with the given dependencies.
func NewServer(service *recommend.Service, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	home, err := template.ParseFS(templateFS, "templates/home.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	gz, err := gzhttp.NewWrapper(gzhttp.MinSize(gzipMinSize))
	if err != nil {
		return nil, fmt.Errorf("gzip wrapper: %w", err)
	}
	s := &Server{
		gzip:    gz,
		service: service,
		config:  cfg,
		logger:  logger,
		home:    home,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.computer == nil {
		s.computer = similarity.NewComputer(
			similarity.WithWorkers(cfg.Similarity.Workers),
			similarity.WithLogger(logger))
	}
	return s, nil
}

// Handler returns the router with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", s.handleHome)
	r.Post("/recommend", s.handleRecommendForm)
	r.Get("/api/v1/recommend", s.handleRecommend)
	r.Post("/api/v1/similarity", s.handleSimilarity)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/reload", s.handleReload)
	r.Get("/health", s.handleHealth)

	return s.gzip(r)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: s.config.Server.ReadTimeout,
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
