// Package alertgate implements C8: the Alert Gate. It is the sole producer
// of Alert records, applying a smart admission filter, windowed
// aggregation for non-High severities, and deduplication, before handing
// finished Alert records to the Dispatch Fan-out (C9).
//
// Grounded on the teacher's internal/gates/entry.go gate-check idiom
// (named, independently-evaluated checks feeding one pass/fail verdict),
// generalized from a one-shot entry decision into a continuous streaming
// admission+aggregation pipeline.
package alertgate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/detect"
	"github.com/google/uuid"
)

// Alert is the Gate's sole output record (§4.8, §6).
type Alert struct {
	ID          string
	Ts          time.Time
	FirstTs     time.Time
	LastTs      time.Time
	Venue       string
	Symbol      string
	Kind        detect.Kind
	Severity    detect.Severity
	Direction   string
	Value       float64
	Threshold   float64
	Price       float64
	Notional    float64
	Count       int
	TotalValue  float64
	MaxValue    float64
	TopSeverity detect.Severity
	Reason      string
}

type bucketKey struct {
	venue  string
	symbol string
}

type bucket struct {
	opened      time.Time
	lastTs      time.Time
	count       int
	totalValue  float64
	maxValue    float64
	topSeverity detect.Severity
	last        detect.Signal
}

// Gate implements the Alert Gate. Metrics hooks are optional callbacks so
// the package has no hard dependency on the metrics registry.
type Gate struct {
	mu       sync.Mutex
	dedup    DedupCache
	buckets  map[bucketKey]*bucket
	onMetric func(label string)
}

// NewGate builds a Gate backed by the given dedup cache (use
// NewInProcessDedup for single-instance deployments).
func NewGate(dedup DedupCache) *Gate {
	return &Gate{dedup: dedup, buckets: make(map[bucketKey]*bucket)}
}

// OnMetric registers a callback invoked with a short label every time the
// Gate suppresses or emits something, for wiring to the metrics registry.
func (g *Gate) OnMetric(cb func(label string)) { g.onMetric = cb }

func (g *Gate) metric(label string) {
	if g.onMetric != nil {
		g.onMetric(label)
	}
}

func severityRank(s detect.Severity) int {
	switch s {
	case detect.SeverityHigh:
		return 2
	case detect.SeverityMedium:
		return 1
	default:
		return 0
	}
}

// priceBucket buckets a price for dedup purposes: floor() for trade-driven
// signals, round-to-4-decimals for resting-wall signals (§4.8.3).
func priceBucket(kind detect.Kind, price float64) float64 {
	if kind == detect.KindWhaleWall {
		return math.Round(price*10000) / 10000
	}
	return math.Floor(price)
}

func dedupKey(sig *detect.Signal) string {
	return fmt.Sprintf("%s:%s:%s:%s:%v", sig.Venue, sig.Symbol, sig.Kind, sig.Direction, priceBucket(sig.Kind, sig.Price))
}

// Ingest admits one detector signal. A cooldown-suppressed signal never
// reaches a sink — it is counted for observability and dropped here (§9
// Open Question decision). A High-severity signal bypasses aggregation and
// is returned immediately. Everything else accumulates into the
// (venue,symbol) bucket and is returned only when Flush closes it.
func (g *Gate) Ingest(ctx context.Context, cfg config.AlertGateConfig, sig *detect.Signal) (*Alert, bool) {
	if sig == nil {
		return nil, false
	}
	if sig.CooldownSuppressed {
		g.metric("cooldown_suppressed")
		return nil, false
	}

	seen, err := g.dedup.SeenRecently(ctx, dedupKey(sig), cfg.DedupTTL)
	if err == nil && seen {
		g.metric("dedup_suppressed")
		return nil, false
	}

	if sig.Severity == detect.SeverityHigh {
		g.metric("high_immediate")
		return g.toAlert(sig, 1, sig.Value, sig.Value, sig.Severity), true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	k := bucketKey{venue: sig.Venue, symbol: sig.Symbol}
	b, ok := g.buckets[k]
	if !ok {
		b = &bucket{opened: sig.Ts, lastTs: sig.Ts, topSeverity: sig.Severity}
		g.buckets[k] = b
	}
	b.count++
	b.totalValue += sig.Value
	if sig.Value > b.maxValue {
		b.maxValue = sig.Value
	}
	if sig.Ts.After(b.lastTs) {
		b.lastTs = sig.Ts
	}
	if severityRank(sig.Severity) > severityRank(b.topSeverity) {
		b.topSeverity = sig.Severity
	}
	b.last = *sig
	g.metric("aggregated")
	return nil, false
}

// Flush closes any (venue,symbol) bucket whose aggregation window has
// elapsed as of now, emitting one summary Alert per closed bucket (§4.8.2,
// §4.8.4: severity escalation — a bucket with any High-severity member
// closes as High regardless of count).
func (g *Gate) Flush(cfg config.AlertGateConfig, now time.Time) []Alert {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Alert
	for k, b := range g.buckets {
		if now.Sub(b.opened) < cfg.AggregationWindow {
			continue
		}
		out = append(out, Alert{
			ID:          uuid.New().String(),
			Ts:          b.lastTs,
			FirstTs:     b.opened,
			LastTs:      b.lastTs,
			Venue:       k.venue,
			Symbol:      k.symbol,
			Kind:        b.last.Kind,
			Severity:    b.topSeverity,
			Direction:   b.last.Direction,
			Count:       b.count,
			TotalValue:  b.totalValue,
			MaxValue:    b.maxValue,
			TopSeverity: b.topSeverity,
			Reason:      "aggregation-window-close",
		})
		delete(g.buckets, k)
	}
	return out
}

func (g *Gate) toAlert(sig *detect.Signal, count int, total, max float64, severity detect.Severity) *Alert {
	return &Alert{
		ID:          uuid.New().String(),
		Ts:          sig.Ts,
		FirstTs:     sig.Ts,
		LastTs:      sig.Ts,
		Venue:       sig.Venue,
		Symbol:      sig.Symbol,
		Kind:        sig.Kind,
		Severity:    severity,
		Direction:   sig.Direction,
		Value:       sig.Value,
		Threshold:   sig.Threshold,
		Price:       sig.Price,
		Notional:    sig.Notional,
		Count:       count,
		TotalValue:  total,
		MaxValue:    max,
		TopSeverity: severity,
		Reason:      sig.Reason,
	}
}
