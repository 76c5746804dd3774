package detect

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/depth"
)

type slippageSample struct {
	pct float64
	ts  time.Time
}

type slippageSymbolState struct {
	samples     []slippageSample // insertion order; TTL-pruned, not sorted
	lastAlertTs time.Time
}

// SlippageDetector tracks a per-symbol adaptive slippage threshold derived
// from the trailing distribution of observed slippage, per §4.7.2.
type SlippageDetector struct {
	mu    sync.Mutex
	state map[string]*slippageSymbolState
}

// NewSlippageDetector builds an empty detector.
func NewSlippageDetector() *SlippageDetector {
	return &SlippageDetector{state: make(map[string]*slippageSymbolState)}
}

// Trade is one executed trade evaluated against the book.
type Trade struct {
	Venue    string
	Symbol   string
	Market   string // "spot" or "perp"
	Side     string // "buy" or "sell": the taker's side
	Price    float64
	Size     float64
	IsMajor  bool // major asset, per configured asset classification
	Ts       time.Time
}

// Evaluate consults the ladder for the swept side, computes VWAP-based
// slippage, and compares it against the symbol's adaptive threshold. It
// returns (nil, false) when the trade's notional is below the market-type
// minimum or the ladder cannot supply a usable VWAP.
func (d *SlippageDetector) Evaluate(cfg config.SlippageConfig, trade Trade, ladder *depth.Ladder) (*Signal, bool) {
	notional := trade.Price * trade.Size
	minNotional := cfg.MinNotionalSpot
	if trade.Market == "perp" {
		minNotional = cfg.MinNotionalPerp
	}
	if notional < minNotional {
		return nil, false
	}

	side := depth.Ask
	if trade.Side == "sell" {
		side = depth.Bid
	}
	vwap, err := ladder.VWAPForNotional(side, notional, cfg.SkipTopLevels, cfg.MinLevels)
	if err != nil {
		return nil, false
	}

	slippagePct := math.Abs(vwap-trade.Price) / trade.Price * 100

	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.state[trade.Symbol]
	if !ok {
		st = &slippageSymbolState{}
		d.state[trade.Symbol] = st
	}

	threshold := d.adaptiveThreshold(cfg, st, trade.IsMajor, trade.Ts)
	st.samples = append(st.samples, slippageSample{pct: slippagePct, ts: trade.Ts})
	pruneSamples(st, cfg, trade.Ts)

	if slippagePct < threshold {
		return nil, false
	}

	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	if !st.lastAlertTs.IsZero() && trade.Ts.Sub(st.lastAlertTs) < cooldown {
		return &Signal{
			Kind: KindSlippage, Venue: trade.Venue, Symbol: trade.Symbol, Market: trade.Market,
			Severity: severityForSlippage(cfg, slippagePct), Direction: trade.Side,
			Price: trade.Price, Value: slippagePct, Threshold: threshold, Notional: notional,
			Ts: trade.Ts, Reason: "cooldown-suppressed", CooldownSuppressed: true,
		}, true
	}
	st.lastAlertTs = trade.Ts

	return &Signal{
		Kind: KindSlippage, Venue: trade.Venue, Symbol: trade.Symbol, Market: trade.Market,
		Severity: severityForSlippage(cfg, slippagePct), Direction: trade.Side,
		Price: trade.Price, Value: slippagePct, Threshold: threshold, Notional: notional,
		Ts: trade.Ts,
	}, true
}

func (d *SlippageDetector) adaptiveThreshold(cfg config.SlippageConfig, st *slippageSymbolState, isMajor bool, now time.Time) float64 {
	fallback := cfg.MinorFallbackPct
	floor := cfg.MinorFloorPct
	if isMajor {
		fallback = cfg.MajorFallbackPct
		floor = cfg.MajorFloorPct
	}

	usable := 0
	cutoff := now.Add(-cfg.SampleTTL)
	for _, s := range st.samples {
		if !s.ts.Before(cutoff) {
			usable++
		}
	}
	if usable < cfg.MinSamples {
		return fallback
	}

	pcts := make([]float64, 0, usable)
	for _, s := range st.samples {
		if !s.ts.Before(cutoff) {
			pcts = append(pcts, s.pct)
		}
	}
	sort.Float64s(pcts)
	p95 := percentile(pcts, 95)
	if p95 < floor {
		return floor
	}
	return p95
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func pruneSamples(st *slippageSymbolState, cfg config.SlippageConfig, now time.Time) {
	cutoff := now.Add(-cfg.SampleTTL)
	i := 0
	for ; i < len(st.samples); i++ {
		if st.samples[i].ts.After(cutoff) {
			break
		}
	}
	if i > 0 {
		copy(st.samples, st.samples[i:])
		st.samples = st.samples[:len(st.samples)-i]
	}
	if len(st.samples) > cfg.SampleSize {
		overflow := len(st.samples) - cfg.SampleSize
		copy(st.samples, st.samples[overflow:])
		st.samples = st.samples[:cfg.SampleSize]
	}
}

func severityForSlippage(cfg config.SlippageConfig, pct float64) Severity {
	switch {
	case pct >= cfg.HighCutPct:
		return SeverityHigh
	case pct >= cfg.MedCutPct:
		return SeverityMedium
	case pct >= cfg.LowCutPct:
		return SeverityLow
	default:
		return SeverityLow
	}
}
