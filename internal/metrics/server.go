package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the read-only HTTP surface for scraping (§4.11, §6 "Metrics
// scrape": text-exposition over HTTP on a configurable port). Grounded on
// internal/interfaces/http/server.go's net/http.Server with a pre-bind
// Listen check, trimmed to the two routes this component needs.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer wires /metrics (promhttp against gatherer) and /health
// (health) behind a plain net/http.ServeMux on host:port.
func NewServer(host string, port int, gatherer prometheus.Gatherer, health *HealthHandler, log zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/health", health)

	addr := fmt.Sprintf("%s:%d", host, port)
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log.With().Str("component", "metrics").Logger(),
	}
}

// Start begins serving until ctx is cancelled, then shuts down gracefully.
// Matches the pattern of every other long-running component: a blocking
// call intended to run in its own goroutine, returning nil on a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("metrics: listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
