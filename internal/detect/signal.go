// Package detect implements C7: the detector suite. Each detector consumes
// trade and/or depth events for one symbol and, when its own local state
// crosses a threshold, emits a Signal for the Alert Gate (C8). Detectors
// are pure functions of the symbol's tracked state except for their own
// small per-symbol state machine — they never call out to other detectors
// or sinks directly.
package detect

import "time"

// Severity classifies how urgently a signal should be treated downstream.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Kind names which detector produced a Signal.
type Kind string

const (
	KindWBI           Kind = "wbi"
	KindSlippage      Kind = "slippage"
	KindWhaleAccum    Kind = "whale_accumulation"
	KindWhaleDist     Kind = "whale_distribution"
	KindWhaleWall     Kind = "whale_wall"
	KindWhaleStopHunt Kind = "whale_stop_hunt"
	KindPump          Kind = "pump"
	KindDump          Kind = "dump"
	KindBasis         Kind = "basis"
	KindOrderFlow     Kind = "order_flow"
)

// Signal is one detector firing, the unit of work the Alert Gate consumes.
type Signal struct {
	Kind      Kind
	Venue     string
	Symbol    string
	Market    string // "spot" or "perp"; set by the slippage and order-flow detectors, empty otherwise
	Severity  Severity
	Direction string // "buy"/"sell" or "up"/"down", detector-specific
	Price     float64
	Value     float64 // detector-specific headline metric (score, slippagePct, basis%, ...)
	Threshold float64
	Notional  float64
	Confidence float64
	Reason    string
	Ts        time.Time

	// CooldownSuppressed marks a signal that fired logically but landed
	// inside a cooldown window; the Alert Gate still sees it for metrics
	// but it must not reach a push sink (§4.7.1, §9 Open Question).
	CooldownSuppressed bool
}
