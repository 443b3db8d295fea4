// Package server provides the HTTP API for tenantrag.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/tenantrag/internal/config"
	"github.com/hyperjump/tenantrag/internal/indexer"
	"github.com/hyperjump/tenantrag/internal/metrics"
	"github.com/hyperjump/tenantrag/internal/search"
	"github.com/hyperjump/tenantrag/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// TenantHeader carries the tenant id on every /api/v1 data request.
	TenantHeader = "X-Tenant-ID"

	maxBodyBytes = 10 << 20
)

// WatchService is the inbox watcher as seen by the API.
type WatchService interface {
	Root() string
	Tenants() []string
}

// Server is the HTTP server for the tenantrag API.
type Server struct {
	engine   *search.Engine
	indexer  *indexer.Indexer
	registry *store.Registry
	config   *config.Config
	logger   *zap.Logger
	watch    WatchService // optional
	server   *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil when the inbox
// watcher is disabled.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	registry *store.Registry,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:   engine,
		indexer:  idx,
		registry: registry,
		config:   cfg,
		logger:   logger,
		watch:    watch,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(metrics.Middleware())

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/watch", s.handleWatch)

		r.Group(func(r chi.Router) {
			r.Use(s.requireTenant)
			r.Post("/documents", s.handleIndexDocument)
			r.Get("/documents", s.handleListDocuments)
			r.Get("/documents/{id}", s.handleGetDocument)
			r.Put("/documents/{id}", s.handleUpdateDocument)
			r.Delete("/documents/{id}", s.handleDeleteDocument)
			r.Post("/query", s.handleQuery)
			r.Post("/chat", s.handleChat)
			r.Delete("/tenant", s.handleDeleteTenant)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type tenantKey struct{}

// requireTenant rejects requests without a valid tenant header and stores the tenant id
// in the request context.
func (s *Server) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get(TenantHeader)
		if tenantID == "" {
			s.respondError(w, http.StatusBadRequest, TenantHeader+" header is required")
			return
		}
		if err := store.ValidateTenantID(tenantID); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey{}, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tenantFrom(r *http.Request) string {
	id, _ := r.Context().Value(tenantKey{}).(string)
	return id
}
