package detect

import (
	"math"
	"sync"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/depth"
)

// WBIState is the Weighted Book Imbalance per-symbol state machine (§4.7.1).
type WBIState int

const (
	WBIWarmup WBIState = iota
	WBIInactive
	WBIPending
	WBIActive
	WBICrossMarket
)

type wbiSymbolState struct {
	state            WBIState
	direction        int // +1 buy pressure, -1 sell pressure, 0 unset
	preFlipDirection int
	pendingCount     int
	pendingReason    string
	emaScore         float64
	emaInit          bool
	skipDeltaOnce    bool
	lastAlertTs      time.Time
	tickCount        int
	lastUpdate       time.Time
}

// WBIDetector tracks the WBI-Lite v3.x state machine for every symbol it
// observes. A single detector instance is shared across all venues; state
// is keyed by venue+symbol so the same canonical symbol on two venues is
// tracked independently.
type WBIDetector struct {
	mu     sync.Mutex
	states map[string]*wbiSymbolState
}

// NewWBIDetector builds an empty detector.
func NewWBIDetector() *WBIDetector {
	return &WBIDetector{states: make(map[string]*wbiSymbolState)}
}

func wbiKey(venue, symbol string) string { return venue + "|" + symbol }

// Evaluate runs one tick of the WBI state machine against the current top-K
// book levels. Returns (signal, true) when a caller-visible event occurred;
// (nil, false) means no alert-worthy transition happened this tick.
func (d *WBIDetector) Evaluate(cfg config.WBIConfig, venue, symbol string, bids, asks []depth.Level, now time.Time) (*Signal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := wbiKey(venue, symbol)
	st, ok := d.states[k]
	if !ok {
		st = &wbiSymbolState{state: WBIWarmup}
		d.states[k] = st
	}
	st.lastUpdate = now
	st.tickCount++

	if len(bids) == 0 || len(asks) == 0 || bids[0].Price >= asks[0].Price {
		st.state = WBICrossMarket
		return nil, false
	}
	if st.state == WBICrossMarket {
		// book uncrossed: resume evaluation fresh, treating this as a
		// recovery tick so delta doesn't register a spurious jump.
		st.state = WBIInactive
		st.skipDeltaOnce = true
	}

	topK := cfg.TopK
	if topK > len(bids) {
		topK = len(bids)
	}
	if topK > len(asks) {
		topK = len(asks)
	}

	bestBid, bestAsk := bids[0].Price, asks[0].Price
	mid := (bestBid + bestAsk) / 2
	rawSpread := bestAsk - bestBid
	minSpread := mid * cfg.MinSpreadBps / 10000
	maxSpread := mid * cfg.MaxSpreadBps / 10000
	spread := clamp(rawSpread, minSpread, maxSpread)
	if spread <= 0 {
		spread = minSpread
	}

	var buyPower, sellPower float64
	for i := 0; i < topK; i++ {
		lv := bids[i]
		weight := 1 / (1 + math.Abs(lv.Price-mid)/spread)
		buyPower += lv.Price * lv.Size * weight
	}
	for i := 0; i < topK; i++ {
		lv := asks[i]
		weight := 1 / (1 + math.Abs(lv.Price-mid)/spread)
		sellPower += lv.Price * lv.Size * weight
	}

	const eps = 1e-9
	ratio := (buyPower + eps) / (sellPower + eps)
	ratio = clamp(ratio, 1e-3, 1e3)

	gain := cfg.GainFactor
	if gain == 0 {
		gain = 1
	}
	score := 2*(sigmoid(gain*math.Log10(ratio))-0.5)

	var delta float64
	if !st.emaInit {
		delta = 0
		st.emaScore = score
		st.emaInit = true
	} else if st.skipDeltaOnce {
		delta = 0
		st.skipDeltaOnce = false
	} else {
		delta = score - st.emaScore
	}

	alpha := cfg.EMAAlpha
	if alpha <= 0 {
		alpha = 1
	}
	st.emaScore = alpha*score + (1-alpha)*st.emaScore

	if st.state == WBIWarmup {
		if st.tickCount >= cfg.WarmupTicks {
			st.state = WBIInactive
			st.skipDeltaOnce = true
		}
		return nil, false
	}

	triggered := math.Abs(delta) >= cfg.DeltaTrigger || math.Abs(score) >= cfg.LevelTrigger
	triggerDir := 0
	if triggered {
		if math.Abs(delta) >= cfg.DeltaTrigger {
			triggerDir = sign(delta)
		} else {
			triggerDir = sign(score)
		}
	}

	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second

	switch st.state {
	case WBIInactive:
		if triggered {
			st.state = WBIPending
			st.direction = triggerDir
			st.pendingCount = 1
			st.pendingReason = "trigger"
		}

	case WBIPending:
		if triggered && triggerDir == st.direction {
			st.pendingCount++
			if st.pendingCount >= cfg.ConfirmTicks {
				inCooldown := !st.lastAlertTs.IsZero() && now.Sub(st.lastAlertTs) < cooldown
				st.state = WBIActive
				if inCooldown {
					return &Signal{
						Kind: KindWBI, Venue: venue, Symbol: symbol,
						Severity: SeverityMedium, Direction: directionLabel(st.direction),
						Value: score, Threshold: cfg.LevelTrigger, Ts: now,
						Reason: "cooldown-suppressed", CooldownSuppressed: true,
					}, true
				}
				st.lastAlertTs = now
				return &Signal{
					Kind: KindWBI, Venue: venue, Symbol: symbol,
					Severity: SeverityMedium, Direction: directionLabel(st.direction),
					Value: score, Threshold: cfg.LevelTrigger, Ts: now,
					Reason: st.pendingReason,
				}, true
			}
		} else if triggered {
			// opposite strong signal: restart pending in the new direction.
			st.direction = triggerDir
			st.pendingCount = 1
			st.pendingReason = "trigger"
		} else {
			// weak opposite: restore a pre-flip active direction if one
			// exists, otherwise fall back to inactive.
			if st.preFlipDirection != 0 {
				st.state = WBIActive
				st.direction = st.preFlipDirection
				st.preFlipDirection = 0
			} else {
				st.state = WBIInactive
			}
			st.pendingCount = 0
		}

	case WBIActive:
		oppositeSign := -st.direction
		edgeFlip := (math.Abs(delta) >= cfg.DeltaTrigger && sign(delta) == oppositeSign) ||
			(math.Abs(score) >= cfg.LevelTrigger && sign(score) == oppositeSign)
		if edgeFlip {
			st.preFlipDirection = st.direction
			st.direction = oppositeSign
			st.state = WBIPending
			st.pendingCount = 1
			st.pendingReason = "flip"
		} else if math.Abs(delta) < cfg.DeltaReset && math.Abs(score) < 0.7*cfg.LevelTrigger {
			st.state = WBIInactive
			st.pendingCount = 0
			st.preFlipDirection = 0
		}
	}

	return nil, false
}

// Sweep removes symbols whose lastUpdate is older than ttl, used to cap
// memory when tracked-symbol count exceeds maxTracked (§4.7.1 zombie
// reaping). Callers are expected to rate-limit invocations to about once
// per minute; Sweep itself does not throttle.
func (d *WBIDetector) Sweep(now time.Time, ttl time.Duration, maxTracked int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.states) <= maxTracked {
		return 0
	}
	removed := 0
	cutoff := now.Add(-ttl)
	for k, st := range d.states {
		if st.lastUpdate.Before(cutoff) {
			delete(d.states, k)
			removed++
		}
	}
	return removed
}

// TrackedSymbols reports how many symbols currently have WBI state.
func (d *WBIDetector) TrackedSymbols() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.states)
}

func sign(x float64) int {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}

func directionLabel(dir int) string {
	if dir >= 0 {
		return "buy"
	}
	return "sell"
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
