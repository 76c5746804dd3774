package detect

import (
	"sync"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/history"
)

type pumpDumpSymbolState struct {
	lastPumpAlert time.Time
	lastDumpAlert time.Time
}

// PumpDumpDetector tracks best-mid excursions over a sliding window,
// per §4.7.4.
type PumpDumpDetector struct {
	mu    sync.Mutex
	state map[string]*pumpDumpSymbolState
}

// NewPumpDumpDetector builds an empty detector.
func NewPumpDumpDetector() *PumpDumpDetector {
	return &PumpDumpDetector{state: make(map[string]*pumpDumpSymbolState)}
}

// Evaluate compares the current mid price against the min/max of the
// trailing window recorded in hist. hist is expected to already contain
// this tick's observation (the caller inserts mid-price points on every
// change before calling detectors).
func (d *PumpDumpDetector) Evaluate(cfg config.PumpDumpConfig, venue, symbol string, current float64, hist *history.History, now time.Time) *Signal {
	min, max, ok := hist.MinMax(cfg.Window, now)
	if !ok || min <= 0 || max <= 0 {
		return nil
	}

	pumpPct := (current - min) / min
	dumpPct := (current - max) / max

	d.mu.Lock()
	defer d.mu.Unlock()
	k := venue + "|" + symbol
	st, ok := d.state[k]
	if !ok {
		st = &pumpDumpSymbolState{}
		d.state[k] = st
	}
	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second

	if pumpPct >= cfg.PumpThreshold {
		if !st.lastPumpAlert.IsZero() && now.Sub(st.lastPumpAlert) < cooldown {
			return nil
		}
		st.lastPumpAlert = now
		return &Signal{
			Kind: KindPump, Venue: venue, Symbol: symbol, Severity: SeverityMedium,
			Direction: "up", Price: current, Value: pumpPct, Threshold: cfg.PumpThreshold, Ts: now,
		}
	}
	if dumpPct <= cfg.DumpThreshold {
		if !st.lastDumpAlert.IsZero() && now.Sub(st.lastDumpAlert) < cooldown {
			return nil
		}
		st.lastDumpAlert = now
		return &Signal{
			Kind: KindDump, Venue: venue, Symbol: symbol, Severity: SeverityMedium,
			Direction: "down", Price: current, Value: dumpPct, Threshold: cfg.DumpThreshold, Ts: now,
		}
	}
	return nil
}
