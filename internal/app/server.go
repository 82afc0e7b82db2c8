package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/privadoc/privadoc/internal/api/handlers"
	appMiddleware "github.com/privadoc/privadoc/internal/api/middlewares"
	"github.com/privadoc/privadoc/internal/config"
	"github.com/privadoc/privadoc/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *log.Logger
}

// NewServer builds and wires all routes. The server binds to the loopback
// address by default; nothing here is meant to be reachable from off the
// machine.
func NewServer(cfg *config.Config, summarySvc *services.SummaryService,
	systemSvc *services.SystemService, logger *log.Logger) *Server {

	summaryHandler := handlers.NewSummaryHandler(summarySvc, cfg.MaxFileSizeBytes(), logger)
	systemHandler := handlers.NewSystemHandler(systemSvc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.API.RequestTimeoutSecs) * time.Second))
	r.Use(appMiddleware.SecurityHeaders(cfg.App.Version))
	r.Use(appMiddleware.RateLimit(cfg.API.RateLimit, logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.API.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(api chi.Router) {
		api.Post("/summarize", summaryHandler.Summarize)
		api.Get("/history", summaryHandler.History)
		api.Get("/summaries/{docID}", summaryHandler.Get)
		api.Delete("/summaries/{docID}", summaryHandler.Delete)

		api.Get("/templates", systemHandler.Templates)
		api.Get("/model/info", systemHandler.ModelInfo)
		api.Get("/stats", systemHandler.Stats)
		api.Get("/health", systemHandler.Health)
	})

	// Bare /health for process supervisors that don't know the API prefix.
	r.Get("/health", systemHandler.Health)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, log: logger.WithPrefix("http")}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	return s.httpServer.Shutdown(ctx)
}
