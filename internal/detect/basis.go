package detect

import (
	"math"
	"sync"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
)

// PriceObservation is one side's latest mid-price reading for the basis
// detector's freshness check.
type PriceObservation struct {
	Price float64
	Ts    time.Time
}

type basisSymbolState struct {
	spot        PriceObservation
	perp        PriceObservation
	lastAlertTs time.Time
}

// BasisDetector tracks the spot/perpetual basis for canonical symbols
// observed on both markets, per §4.7.5.
type BasisDetector struct {
	mu    sync.Mutex
	state map[string]*basisSymbolState
}

// NewBasisDetector builds an empty detector.
func NewBasisDetector() *BasisDetector {
	return &BasisDetector{state: make(map[string]*basisSymbolState)}
}

// ObserveSpot records a fresh spot mid-price for a canonical symbol.
func (d *BasisDetector) ObserveSpot(symbol string, price float64, ts time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.symbolLocked(symbol)
	st.spot = PriceObservation{Price: price, Ts: ts}
}

// ObservePerp records a fresh perpetual mid-price and evaluates basis.
func (d *BasisDetector) ObservePerp(cfg config.BasisConfig, symbol string, price float64, ts time.Time) *Signal {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.symbolLocked(symbol)
	st.perp = PriceObservation{Price: price, Ts: ts}
	return d.evaluateLocked(cfg, symbol, st, ts)
}

func (d *BasisDetector) symbolLocked(symbol string) *basisSymbolState {
	st, ok := d.state[symbol]
	if !ok {
		st = &basisSymbolState{}
		d.state[symbol] = st
	}
	return st
}

func (d *BasisDetector) evaluateLocked(cfg config.BasisConfig, symbol string, st *basisSymbolState, now time.Time) *Signal {
	if st.spot.Ts.IsZero() || st.perp.Ts.IsZero() {
		return nil
	}
	if now.Sub(st.spot.Ts) > cfg.FreshnessWindow || now.Sub(st.perp.Ts) > cfg.FreshnessWindow {
		return nil
	}
	if st.spot.Price <= 0 {
		return nil
	}

	basis := (st.perp.Price - st.spot.Price) / st.spot.Price * 100
	if math.Abs(basis) < cfg.AlertThreshold*100 {
		return nil
	}

	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	if !st.lastAlertTs.IsZero() && now.Sub(st.lastAlertTs) < cooldown {
		return nil
	}
	st.lastAlertTs = now

	severity := SeverityMedium
	if math.Abs(basis) >= cfg.HighThreshold*100 {
		severity = SeverityHigh
	}

	direction := "perp-premium"
	if basis < 0 {
		direction = "perp-discount"
	}

	return &Signal{
		Kind: KindBasis, Symbol: symbol, Severity: severity, Direction: direction,
		Value: basis, Threshold: cfg.AlertThreshold * 100, Ts: now,
	}
}
