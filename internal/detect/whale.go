package detect

import (
	"sync"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/history"
)

type largeOrder struct {
	side     string
	notional float64
	ts       time.Time
}

type wallObservation struct {
	notional  float64
	firstSeen time.Time
	lastSeen  time.Time
	alerted   bool
}

type stopHuntState struct {
	breakoutActive bool
	breakoutPrice  float64
	breakoutTs     time.Time
	priorLow       float64
}

type whaleSymbolState struct {
	orders   []largeOrder
	walls    map[float64]*wallObservation
	stopHunt stopHuntState

	lastAccumAlert time.Time
	lastDistAlert  time.Time
}

// WhaleDetector tracks large-order accumulation/distribution, persistent
// price walls, and stop-hunt patterns per §4.7.3.
type WhaleDetector struct {
	mu    sync.Mutex
	state map[string]*whaleSymbolState
}

// NewWhaleDetector builds an empty detector.
func NewWhaleDetector() *WhaleDetector {
	return &WhaleDetector{state: make(map[string]*whaleSymbolState)}
}

func whaleKey(venue, symbol string) string { return venue + "|" + symbol }

// DynamicThreshold computes the notional floor above which a trade counts
// as "large", per §4.7.3: max(ema24hQuoteVolume*ratio, floor).
func DynamicThreshold(cfg config.WhaleConfig, ema24hQuoteVolume float64) float64 {
	t := ema24hQuoteVolume * cfg.NotionalRatio
	if t < cfg.NotionalFloor {
		return cfg.NotionalFloor
	}
	return t
}

// ObserveTrade ingests one trade, appends it to the large-order window if
// it clears the dynamic threshold, evaluates accumulation/distribution, and
// runs the stop-hunt check (which applies to every trade, not only large
// ones, since it reasons about price action rather than order size).
func (d *WhaleDetector) ObserveTrade(cfg config.WhaleConfig, venue, symbol string, trade Trade, ema24hQuoteVolume float64, hist *history.History, now time.Time) []*Signal {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := whaleKey(venue, symbol)
	st, ok := d.state[k]
	if !ok {
		st = &whaleSymbolState{walls: make(map[float64]*wallObservation)}
		d.state[k] = st
	}

	var signals []*Signal
	threshold := DynamicThreshold(cfg, ema24hQuoteVolume)
	notional := trade.Price * trade.Size

	if notional >= threshold {
		st.orders = append(st.orders, largeOrder{side: trade.Side, notional: notional, ts: now})
		pruneOrders(st, cfg.Window, now)

		if sig := evaluateAccumDist(cfg, st, venue, symbol, now); sig != nil {
			signals = append(signals, sig)
		}
	}

	if sig := d.evaluateStopHunt(cfg, st, venue, symbol, trade, hist, now); sig != nil {
		signals = append(signals, sig)
	}

	return signals
}

func pruneOrders(st *whaleSymbolState, window time.Duration, now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(st.orders); i++ {
		if st.orders[i].ts.After(cutoff) {
			break
		}
	}
	if i > 0 {
		copy(st.orders, st.orders[i:])
		st.orders = st.orders[:len(st.orders)-i]
	}
}

func evaluateAccumDist(cfg config.WhaleConfig, st *whaleSymbolState, venue, symbol string, now time.Time) *Signal {
	total := len(st.orders)
	if total < cfg.MinOrdersForPattern {
		return nil
	}
	buyCount := 0
	for _, o := range st.orders {
		if o.side == "buy" {
			buyCount++
		}
	}
	buyRatio := float64(buyCount) / float64(total)
	sellRatio := 1 - buyRatio

	// a minimal per-pattern cooldown (not specified numerically in §4.7.3)
	// prevents an alert on every single qualifying trade once the ratio is
	// already past threshold; reuses the detector's own window as the gate.
	if buyRatio >= cfg.AccumDistRatio && now.Sub(st.lastAccumAlert) >= cfg.Window {
		st.lastAccumAlert = now
		return &Signal{
			Kind: KindWhaleAccum, Venue: venue, Symbol: symbol, Severity: SeverityMedium,
			Direction: "buy", Value: buyRatio, Threshold: cfg.AccumDistRatio,
			Confidence: buyRatio, Ts: now,
		}
	}
	if sellRatio >= cfg.AccumDistRatio && now.Sub(st.lastDistAlert) >= cfg.Window {
		st.lastDistAlert = now
		return &Signal{
			Kind: KindWhaleDist, Venue: venue, Symbol: symbol, Severity: SeverityMedium,
			Direction: "sell", Value: sellRatio, Threshold: cfg.AccumDistRatio,
			Confidence: sellRatio, Ts: now,
		}
	}
	return nil
}

// ObserveWallLevel is called for each book level whose resting notional
// clears the dynamic threshold (fed by the depth ladder, not by trades).
// PruneWalls must be called once per scan with the full set of
// still-present price levels so stale walls can be forgotten.
func (d *WhaleDetector) ObserveWallLevel(cfg config.WhaleConfig, venue, symbol string, price, notional float64, now time.Time) (*Signal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := whaleKey(venue, symbol)
	st, ok := d.state[k]
	if !ok {
		st = &whaleSymbolState{walls: make(map[float64]*wallObservation)}
		d.state[k] = st
	}

	w, ok := st.walls[price]
	if !ok {
		st.walls[price] = &wallObservation{notional: notional, firstSeen: now, lastSeen: now}
		return nil, false
	}
	w.notional = notional
	w.lastSeen = now

	age := now.Sub(w.firstSeen)
	if w.alerted || age < time.Duration(cfg.WallPersistMinutes*float64(time.Minute)) {
		return nil, false
	}
	w.alerted = true
	ageSeconds := age.Seconds()
	confidence := ageSeconds / 600
	if confidence > 1 {
		confidence = 1
	}
	return &Signal{
		Kind: KindWhaleWall, Venue: venue, Symbol: symbol, Severity: SeverityMedium,
		Price: price, Value: notional, Confidence: confidence, Ts: now,
	}, true
}

// PruneWalls forgets price levels not present in the latest scan, keyed by
// the still-qualifying set the caller observed this pass.
func (d *WhaleDetector) PruneWalls(venue, symbol string, stillPresent map[float64]bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.state[whaleKey(venue, symbol)]
	if !ok {
		return
	}
	for price := range st.walls {
		if !stillPresent[price] {
			delete(st.walls, price)
		}
	}
}

func (d *WhaleDetector) evaluateStopHunt(cfg config.WhaleConfig, st *whaleSymbolState, venue, symbol string, trade Trade, hist *history.History, now time.Time) *Signal {
	if hist == nil {
		return nil
	}
	priorLow, _, ok := hist.MinMax(time.Hour, now)
	if !ok {
		return nil
	}

	sh := &st.stopHunt
	recoveryWindow := time.Duration(cfg.StopHuntRecoverySecs * float64(time.Second))

	if sh.breakoutActive && now.Sub(sh.breakoutTs) > recoveryWindow {
		sh.breakoutActive = false
	}

	if !sh.breakoutActive && trade.Price < priorLow {
		sh.breakoutActive = true
		sh.breakoutPrice = trade.Price
		sh.breakoutTs = now
		sh.priorLow = priorLow
		return nil
	}

	if sh.breakoutActive && trade.Price >= sh.priorLow && now.Sub(sh.breakoutTs) <= recoveryWindow {
		recentAvg := hist.AvgVolume(cfg.Window, now)
		longAvg := hist.AvgVolume(time.Hour, now)
		sh.breakoutActive = false
		if longAvg > 0 && recentAvg >= cfg.StopHuntVolumeRatio*longAvg {
			return &Signal{
				Kind: KindWhaleStopHunt, Venue: venue, Symbol: symbol, Severity: SeverityHigh,
				Price: trade.Price, Value: sh.breakoutPrice, Threshold: sh.priorLow, Ts: now,
			}
		}
	}

	return nil
}
