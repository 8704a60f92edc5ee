// Package server exposes the batch pipeline over HTTP: uploads come in as
// multipart forms, converted files and charts go back as downloads.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nconklindev/datasweeper/internal/config"
	"github.com/nconklindev/datasweeper/internal/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Server is the HTTP server for upload, inspection and conversion.
type Server struct {
	cfg     config.Config
	version string
	router  *chi.Mux
	server  *http.Server
}

// New creates a Server with its routes installed.
func New(cfg config.Config, version string) *Server {
	s := &Server{
		cfg:     cfg,
		version: version,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(render.SetContentType(render.ContentTypeJSON))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/inspect", s.handleInspect)
		r.Post("/convert/{format}", s.handleConvert)
		r.Post("/chart", s.handleChart)
	})
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// orchestrator builds the pipeline for one request. source overrides the
// configured export source when non-empty.
func (s *Server) orchestrator(source string) *pipeline.Orchestrator {
	if source == "" {
		source = s.cfg.Output.Source
	}
	return pipeline.New(pipeline.WithExportEdited(source == config.SourceEdited))
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting server", "addr", s.cfg.Server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
