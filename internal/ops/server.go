// Package ops exposes the operational HTTP surface: liveness and Prometheus
// metrics.
package ops

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hoopsight/statcrawler/internal/metrics"
)

// Server serves /healthz and /metrics on its own listener so scrapes keep
// working while a run is in flight.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// New builds the ops server on addr.
func New(addr string, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

// Start serves in the background. Listener failures are logged, not fatal;
// the pipeline does not depend on the ops surface.
func (s *Server) Start() {
	go func() {
		s.logger.Info("ops server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("ops server stopped", zap.Error(err))
		}
	}()
}

// Shutdown drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
