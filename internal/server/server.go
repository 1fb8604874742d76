// Package server exposes an agent over HTTP: one POST endpoint accepting an
// envelope and answering with the reply envelope, plus a manifest endpoint
// for discovery.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	http   *http.Server
}

// New assembles the router and middleware stack. authToken, when non-empty,
// gates every request behind a bearer token check.
func New(port int, timeout time.Duration, authToken string, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	if authToken != "" {
		r.Use(BearerAuthMiddleware(authToken))
	}
	r.Use(TimeoutMiddleware(timeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "openfloor-agent")
	})

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
	}
}

// Mount registers the envelope exchange and manifest routes for an agent.
func (s *Server) Mount(agent Agent) {
	h := NewEnvelopeHandler(agent, s.logger)
	s.Router.Post("/", h.Exchange)
	s.Router.Get("/manifest", h.Manifest)
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.Int("port", s.Port))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}
