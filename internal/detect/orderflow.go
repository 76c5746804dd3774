package detect

import (
	"sync"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
)

// FlowDirection classifies the trade-based buy/sell pressure ratio §4.7.6
// computes. Distinct from WBI's book-based imbalance: this looks at
// executed taker flow, not resting depth.
type FlowDirection string

const (
	FlowBuyPressure  FlowDirection = "buy_pressure"
	FlowSellPressure FlowDirection = "sell_pressure"
	FlowBalanced     FlowDirection = "balanced"
)

type orderFlowTrade struct {
	ts     time.Time
	value  float64
	isBuy  bool
}

type orderFlowSymbolState struct {
	trades            []orderFlowTrade // insertion order; pruned by retention window
	lastDirection     FlowDirection
	directionStart    time.Time
	lastAlertTs       time.Time
}

// OrderFlowDetector tracks a rolling window of trade notional per symbol
// and fires when the buy/sell ratio clears a threshold for several
// consecutive minutes running. Grounded on the original system's
// OrderFlowAnalyzer (monitoring/order_flow.py): a deque of recent trades,
// a buy_volume/sell_volume ratio over a trailing window, and a
// consecutive-minutes counter gating significance so a single noisy tick
// cannot fire an alert on its own.
type OrderFlowDetector struct {
	mu    sync.Mutex
	state map[string]*orderFlowSymbolState
}

// NewOrderFlowDetector builds an empty detector.
func NewOrderFlowDetector() *OrderFlowDetector {
	return &OrderFlowDetector{state: make(map[string]*orderFlowSymbolState)}
}

// Evaluate records trade and re-derives the symbol's buy/sell pressure
// signal. It returns (nil, false) when the window holds too few trades to
// judge, the ratio is balanced, or the direction hasn't persisted long
// enough to clear cfg.ConsecutiveAlertMinutes.
func (d *OrderFlowDetector) Evaluate(cfg config.OrderFlowConfig, trade Trade) (*Signal, bool) {
	notional := trade.Price * trade.Size
	isBuy := trade.Side == "buy"

	d.mu.Lock()
	defer d.mu.Unlock()
	k := trade.Venue + "|" + trade.Symbol
	st, ok := d.state[k]
	if !ok {
		st = &orderFlowSymbolState{}
		d.state[k] = st
	}

	st.trades = append(st.trades, orderFlowTrade{ts: trade.Ts, value: notional, isBuy: isBuy})
	pruneOrderFlowTrades(st, cfg, trade.Ts)

	windowSeconds := cfg.WindowSeconds
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	cutoff := trade.Ts.Add(-time.Duration(windowSeconds) * time.Second)

	var buyVolume, sellVolume float64
	var count int
	for _, t := range st.trades {
		if t.ts.Before(cutoff) {
			continue
		}
		count++
		if t.isBuy {
			buyVolume += t.value
		} else {
			sellVolume += t.value
		}
	}
	ratio := buyVolume / (sellVolume + 1e-9)

	minTradeCount := cfg.MinTradeCount
	if minTradeCount <= 0 {
		minTradeCount = 10
	}

	var direction FlowDirection
	significant := false
	switch {
	case count < minTradeCount:
		direction = FlowBalanced
	case ratio >= cfg.BuyPressureThreshold:
		direction = FlowBuyPressure
		significant = true
	case ratio <= cfg.SellPressureThreshold:
		direction = FlowSellPressure
		significant = true
	default:
		direction = FlowBalanced
	}

	var consecutiveMinutes int64
	if direction != FlowBalanced {
		if st.lastDirection == direction && !st.directionStart.IsZero() {
			consecutiveMinutes = int64(trade.Ts.Sub(st.directionStart).Minutes())
		} else {
			st.lastDirection = direction
			st.directionStart = trade.Ts
		}
	} else {
		st.lastDirection = ""
		st.directionStart = time.Time{}
	}

	consecutiveAlertMinutes := cfg.ConsecutiveAlertMinutes
	if consecutiveAlertMinutes <= 0 {
		consecutiveAlertMinutes = 2
	}
	if consecutiveMinutes < consecutiveAlertMinutes {
		significant = false
	}
	if !significant {
		return nil, false
	}

	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	if !st.lastAlertTs.IsZero() && trade.Ts.Sub(st.lastAlertTs) < cooldown {
		return &Signal{
			Kind: KindOrderFlow, Venue: trade.Venue, Symbol: trade.Symbol, Market: trade.Market,
			Severity: SeverityMedium, Direction: string(direction), Price: trade.Price,
			Value: ratio, Threshold: cfg.BuyPressureThreshold, Notional: buyVolume + sellVolume,
			Ts: trade.Ts, Reason: "cooldown-suppressed", CooldownSuppressed: true,
		}, true
	}
	st.lastAlertTs = trade.Ts

	dir := "up"
	if direction == FlowSellPressure {
		dir = "down"
	}
	return &Signal{
		Kind: KindOrderFlow, Venue: trade.Venue, Symbol: trade.Symbol, Market: trade.Market,
		Severity: SeverityMedium, Direction: dir, Price: trade.Price,
		Value: ratio, Threshold: cfg.BuyPressureThreshold, Notional: buyVolume + sellVolume,
		Ts: trade.Ts, Reason: string(direction),
	}, true
}

// pruneOrderFlowTrades drops trades older than window_seconds * retention
// multiple, mirroring _clean_old_trades's wider retention buffer (the
// analysis window itself is narrower, re-filtered on every Evaluate).
func pruneOrderFlowTrades(st *orderFlowSymbolState, cfg config.OrderFlowConfig, now time.Time) {
	windowSeconds := cfg.WindowSeconds
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	retention := cfg.RetentionMultiple
	if retention <= 0 {
		retention = 5
	}
	cutoff := now.Add(-time.Duration(windowSeconds*retention) * time.Second)

	i := 0
	for ; i < len(st.trades); i++ {
		if st.trades[i].ts.After(cutoff) {
			break
		}
	}
	if i > 0 {
		copy(st.trades, st.trades[i:])
		st.trades = st.trades[:len(st.trades)-i]
	}
}
