package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestFetcher_FetchSnapshotDecodesBidsAsks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lastUpdateId":100,"bids":[[100,1],[99,2]],"asks":[[101,1]]}`))
	}))
	defer srv.Close()

	f := NewFetcher(Config{
		Venue:  "binance",
		URLFor: func(symbol string) string { return srv.URL + "/depth?symbol=" + symbol },
	}, zerolog.Nop())

	snap, err := f.FetchSnapshot(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.LastUpdateID != 100 || len(snap.Bids) != 2 || len(snap.Asks) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestFetcher_RateLimitedReturnsWrappedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewFetcher(Config{
		Venue:  "binance",
		URLFor: func(symbol string) string { return srv.URL },
	}, zerolog.Nop())

	_, err := f.FetchSnapshot(context.Background(), "BTCUSDT")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestFetcher_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(Config{
		Venue:  "binance",
		URLFor: func(symbol string) string { return srv.URL },
	}, zerolog.Nop())

	var lastErr error
	for i := 0; i < 10; i++ {
		_, lastErr = f.FetchSnapshot(context.Background(), "BTCUSDT")
	}
	if lastErr == nil {
		t.Fatal("expected an error once the breaker is open")
	}
}
