// Package admin implements the §4.18 HTTP control surface: read-only
// operational visibility into registered venues, tracked symbols, and the
// live Hot Config snapshot, separate from the /metrics scrape endpoint.
//
// Grounded on internal/interfaces/http/server.go's gorilla/mux Server
// (route table, request-ID/logging middleware), trimmed to the three
// read-only routes named in SPEC_FULL.md §6 and carrying no auth, intended
// for private-network exposure only.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/venue"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Server is the admin HTTP surface.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	registry   *venue.Registry
	hot        *config.Hot
	log        zerolog.Logger
}

// NewServer wires /admin/symbols, /admin/venues, /admin/config on
// host:port. hot may be nil if Hot Config has not yet finished loading at
// startup; /admin/config then reports an empty snapshot rather than
// failing the whole admin surface.
func NewServer(host string, port int, registry *venue.Registry, hot *config.Hot, log zerolog.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		registry: registry,
		hot:      hot,
		log:      log.With().Str("component", "admin").Logger(),
	}
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.HandleFunc("/admin/symbols", s.handleSymbols).Methods(http.MethodGet)
	s.router.HandleFunc("/admin/venues", s.handleVenues).Methods(http.MethodGet)
	s.router.HandleFunc("/admin/config", s.handleConfig).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router exposes the mux router for tests (httptest.NewServer(s.Router())).
func (s *Server) Router() *mux.Router { return s.router }

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.New().String()[:8])
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).Msg("admin request")
	})
}

type venueView struct {
	Name           string   `json:"name"`
	StreamEndpoint string   `json:"stream_endpoint"`
	RESTEndpoint   string   `json:"rest_endpoint"`
	MarketTypes    []string `json:"market_types"`
}

func (s *Server) handleVenues(w http.ResponseWriter, r *http.Request) {
	venues := s.registry.Venues()
	out := make([]venueView, 0, len(venues))
	for _, v := range venues {
		markets := make([]string, len(v.MarketTypes))
		for i, m := range v.MarketTypes {
			markets[i] = string(m)
		}
		out = append(out, venueView{
			Name: v.Name, StreamEndpoint: v.StreamEndpoint,
			RESTEndpoint: v.RESTEndpoint, MarketTypes: markets,
		})
	}
	writeJSON(w, out)
}

type symbolView struct {
	Venue          string  `json:"venue"`
	Market         string  `json:"market"`
	Symbol         string  `json:"symbol"`
	QuoteVolume24h float64 `json:"quote_volume_24h"`
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	venueFilter := r.URL.Query().Get("venue")
	out := []symbolView{}
	for _, v := range s.registry.Venues() {
		if venueFilter != "" && v.Name != venueFilter {
			continue
		}
		for _, m := range v.MarketTypes {
			for _, rs := range s.registry.ListSymbols(v.Name, m) {
				out = append(out, symbolView{
					Venue: v.Name, Market: string(m),
					Symbol: rs.Symbol.Display(), QuoteVolume24h: rs.QuoteVolume24h,
				})
			}
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if s.hot == nil {
		writeJSON(w, struct{}{})
		return
	}
	writeJSON(w, s.hot.Get())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_ = json.NewEncoder(w).Encode(v)
}

// Start begins serving until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("admin: listening")
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
