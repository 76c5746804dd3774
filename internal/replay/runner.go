package replay

import (
	"context"
	"time"

	"github.com/cryptosurveil/surveil/internal/alertgate"
	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/depth"
	"github.com/cryptosurveil/surveil/internal/detect"
	"github.com/cryptosurveil/surveil/internal/dispatch"
	"github.com/cryptosurveil/surveil/internal/history"
	"github.com/cryptosurveil/surveil/internal/metrics"
	"github.com/cryptosurveil/surveil/internal/stream"
	"github.com/rs/zerolog"
)

// majorAssets mirrors supervisor.majorAssets: replay has no live venue
// registry to classify base assets, so the same static BTC/ETH set
// decides the slippage detector's fallback tier (§4.7.2).
var majorAssets = map[string]bool{"BTC": true, "ETH": true}

// Runner drives the detector suite, Alert Gate, and Dispatch Fan-out
// against a recorded event stream instead of live venue connections.
// Depth-driven detectors (WBI, whale wall) are not exercised: the §4.13
// CSV schema carries trades only, no order-book levels.
type Runner struct {
	hot   *config.Hot
	hist  *history.Store
	store *depth.Store

	slippage  *detect.SlippageDetector
	whale     *detect.WhaleDetector
	pumpDump  *detect.PumpDumpDetector
	basis     *detect.BasisDetector
	orderFlow *detect.OrderFlowDetector

	gate   *alertgate.Gate
	fanout *dispatch.Fanout
	met    *metrics.Registry
	pool   *MockPool
	log    zerolog.Logger
}

// NewRunner wires a fresh detector suite against fanout. met may be nil
// (replay runs with no metrics scrape surface by default).
func NewRunner(hot *config.Hot, fanout *dispatch.Fanout, met *metrics.Registry, log zerolog.Logger) *Runner {
	r := &Runner{
		hot:      hot,
		hist:     history.NewStore(hot.Get().Whale.EMAWindow),
		store:    depth.NewStore(depth.FullSnapshotMode, nil),
		slippage: detect.NewSlippageDetector(),
		whale:    detect.NewWhaleDetector(),
		pumpDump:  detect.NewPumpDumpDetector(),
		basis:     detect.NewBasisDetector(),
		orderFlow: detect.NewOrderFlowDetector(),
		gate:     alertgate.NewGate(alertgate.NewInProcessDedup()),
		fanout:   fanout,
		met:      met,
		pool:     NewMockPool(),
		log:      log.With().Str("component", "replay").Logger(),
	}
	r.pool.OnTrade(r.handleTrade)
	return r
}

// Run replays events at the given speed (1.0 wall-clock, 0 as fast as
// possible) and force-flushes every open aggregation bucket once the
// stream is exhausted, so no terminal alert is lost to an unclosed window.
func (r *Runner) Run(ctx context.Context, events []Event, speed float64) error {
	err := r.pool.Run(ctx, events, speed)
	r.forceFlushAll()
	if err != nil {
		return err
	}
	return nil
}

func (r *Runner) handleTrade(tr stream.Trade) {
	th := r.hot.Get()
	hist := r.hist.For(tr.Venue, tr.Symbol)
	hist.Insert(tr.Ts, tr.Price, tr.Size)

	base := tr.Symbol
	if i := indexOfDash(tr.Symbol); i >= 0 {
		base = tr.Symbol[:i]
	}

	dt := detect.Trade{
		Venue: tr.Venue, Symbol: tr.Symbol, Market: tr.Market,
		Side: tr.TakerSide(), Price: tr.Price, Size: tr.Size, Ts: tr.Ts,
		IsMajor: majorAssets[base],
	}

	if r.met != nil {
		r.met.RecordTrade(tr.Venue)
	}

	ladder := r.store.Ladder(tr.Venue, tr.Symbol)
	if sig, fired := r.slippage.Evaluate(th.Slippage, dt, ladder); fired {
		r.ingest(sig)
	}

	for _, sig := range r.whale.ObserveTrade(th.Whale, tr.Venue, tr.Symbol, dt, 0, hist, tr.Ts) {
		r.ingest(sig)
	}

	if sig := r.pumpDump.Evaluate(th.PumpDump, tr.Venue, tr.Symbol, tr.Price, hist, tr.Ts); sig != nil {
		r.ingest(sig)
	}

	if sig, fired := r.orderFlow.Evaluate(th.OrderFlow, dt); fired {
		r.ingest(sig)
	}

	if tr.Market == "spot" {
		r.basis.ObserveSpot(tr.Symbol, tr.Price, tr.Ts)
	} else if sig := r.basis.ObservePerp(th.Basis, tr.Symbol, tr.Price, tr.Ts); sig != nil {
		r.ingest(sig)
	}
}

func indexOfDash(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			return i
		}
	}
	return -1
}

func (r *Runner) ingest(sig *detect.Signal) {
	if sig == nil {
		return
	}
	th := r.hot.Get()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if alert, ok := r.gate.Ingest(ctx, th.AlertGate, sig); ok {
		if r.met != nil {
			r.met.RecordAlert(string(alert.Severity), alert.Venue, string(alert.Kind))
		}
		r.fanout.Submit(*alert)
	}
}

func (r *Runner) forceFlushAll() {
	th := r.hot.Get()
	future := time.Now().Add(th.AlertGate.AggregationWindow + time.Second)
	for _, alert := range r.gate.Flush(th.AlertGate, future) {
		r.fanout.Submit(alert)
	}
}
