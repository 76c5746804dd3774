package stream

import (
	"testing"
	"time"
)

func TestQuietSet_ActiveUntilExpiry(t *testing.T) {
	q := NewQuietSet()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q.Mark("binance", "BTC-USD", now, 10*time.Second)

	if !q.Active("binance", "BTC-USD", now.Add(5*time.Second)) {
		t.Fatal("expected quiet period still active at +5s")
	}
	if q.Active("binance", "BTC-USD", now.Add(11*time.Second)) {
		t.Fatal("expected quiet period expired at +11s")
	}
}

func TestQuietSet_UnmarkedSymbolNeverActive(t *testing.T) {
	q := NewQuietSet()
	if q.Active("binance", "ETH-USD", time.Now()) {
		t.Fatal("expected unmarked symbol to report inactive")
	}
}

func TestQuietSet_DistinctVenuesIndependent(t *testing.T) {
	q := NewQuietSet()
	now := time.Now()
	q.Mark("binance", "BTC-USD", now, time.Minute)
	if q.Active("kraken", "BTC-USD", now) {
		t.Fatal("expected quiet mark to be venue-scoped")
	}
}
