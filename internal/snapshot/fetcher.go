// Package snapshot implements the REST depth-snapshot fetch side of §4.5's
// gap repair: when a shard's incremental ladder detects a sequence gap, it
// asks a snapshot.Fetcher for a fresh top-of-book read instead of tearing
// down the whole connection.
//
// Grounded on internal/infrastructure/providers/okx.go's http.NewRequest +
// json.Decode REST call shape, wrapped in a github.com/sony/gobreaker
// circuit breaker the way internal/infrastructure/providers/circuitbreakers.go
// wraps every provider call (§4.18 "Venue health & circuit breaking"): once
// a venue's REST path trips open, FetchSnapshot fails fast instead of
// piling up timeouts while the ladder buffers diffs.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cryptosurveil/surveil/internal/depth"
	"github.com/cryptosurveil/surveil/internal/errkind"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// wireDepth is the generic REST depth-snapshot shape (the same
// {bids,asks} pair arrays as the streaming wire format, with a top-level
// sequence id under one of the two common key spellings).
type wireDepth struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Seq          int64       `json:"seq"`
	Bids         [][]float64 `json:"bids"`
	Asks         [][]float64 `json:"asks"`
}

// Fetcher implements depth.SnapshotFetcher over one venue's REST endpoint.
type Fetcher struct {
	venue   string
	urlFor  func(symbol string) string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// Config tunes one venue's REST snapshot fetcher.
type Config struct {
	Venue          string
	RequestTimeout time.Duration
	BreakerTimeout time.Duration // how long the breaker stays open before a half-open trial
	// URLFor builds the REST snapshot URL for a canonical/wire symbol,
	// e.g. fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=1000", base, sym).
	URLFor func(symbol string) string
}

// NewFetcher builds a circuit-breaker-wrapped REST snapshot fetcher.
func NewFetcher(cfg Config, log zerolog.Logger) *Fetcher {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    fmt.Sprintf("snapshot-%s", cfg.Venue),
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("snapshot: circuit breaker state change")
		},
	}

	return &Fetcher{
		venue:   cfg.Venue,
		urlFor:  cfg.URLFor,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log.With().Str("component", "snapshot").Str("venue", cfg.Venue).Logger(),
	}
}

// FetchSnapshot implements depth.SnapshotFetcher.
func (f *Fetcher) FetchSnapshot(ctx context.Context, symbol string) (depth.Snapshot, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.fetch(ctx, symbol)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return depth.Snapshot{}, errkind.Wrap(errkind.ErrTransientNetwork, "snapshot: circuit open for "+f.venue)
		}
		return depth.Snapshot{}, err
	}
	return result.(depth.Snapshot), nil
}

func (f *Fetcher) fetch(ctx context.Context, symbol string) (depth.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.urlFor(symbol), nil)
	if err != nil {
		return depth.Snapshot{}, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return depth.Snapshot{}, errkind.Wrap(errkind.ErrTransientNetwork, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return depth.Snapshot{}, errkind.Wrap(errkind.ErrRateLimited, fmt.Sprintf("snapshot: %s returned 429", f.venue))
	}
	if resp.StatusCode != http.StatusOK {
		return depth.Snapshot{}, errkind.Wrap(errkind.ErrTransientNetwork, fmt.Sprintf("snapshot: %s returned %d", f.venue, resp.StatusCode))
	}

	var wd wireDepth
	if err := json.NewDecoder(resp.Body).Decode(&wd); err != nil {
		return depth.Snapshot{}, errkind.Wrap(errkind.ErrProtocolViolation, "snapshot: decode failed: "+err.Error())
	}

	lastID := wd.LastUpdateID
	if lastID == 0 {
		lastID = wd.Seq
	}
	return depth.Snapshot{
		Bids:         toLevels(wd.Bids),
		Asks:         toLevels(wd.Asks),
		LastUpdateID: lastID,
	}, nil
}

func toLevels(in [][]float64) []depth.Level {
	out := make([]depth.Level, 0, len(in))
	for _, e := range in {
		if len(e) < 2 {
			continue
		}
		out = append(out, depth.Level{Price: e[0], Size: e[1]})
	}
	return out
}
