package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookingbot/core/logger"
	"log/slog"
)

// Server exposes the Prometheus registry over HTTP.
type Server struct {
	srv *http.Server
}

// NewServer prepares a /metrics listener on the given address.
func NewServer(listen string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{srv: &http.Server{Addr: listen, Handler: mux}}
}

// Start serves until Stop is called. Errors other than a clean close are logged.
func (s *Server) Start() {
	go func() {
		logger.L.With("component", "metrics").Info("metrics listening",
			slog.String("event", "listen"),
			slog.String("listen", s.srv.Addr),
		)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.With("component", "metrics").Error("metrics server failed",
				slog.String("event", "serve"),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Stop shuts the listener down, waiting briefly for in-flight scrapes.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
