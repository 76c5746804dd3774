package stream

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/depth"
	"github.com/cryptosurveil/surveil/internal/errkind"
	"github.com/cryptosurveil/surveil/internal/proxy"
	"github.com/cryptosurveil/surveil/internal/ratelimit"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is one step of the §4.3 per-shard protocol state machine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribing
	StateStreaming
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// ShardSpec names one shard's static assignment: a venue/market slice of
// the Cartesian product with at most maxStreamsPerConnection symbols.
type ShardSpec struct {
	ID          string
	Venue       string
	Market      string
	Endpoint    string
	Symbols     []string      // symbol keys this shard owns in depth.Store/history.Store
	Streams     []string      // venue wire-form stream names for the subscribe frame
	ReceiveIdle time.Duration // idle deadline before a reconnect (§5, default 90s)
}

// Shard runs one connection's state machine: dial, subscribe, stream,
// reconnect with backoff, surfacing a fatal error only once its reconnect
// budget is exhausted (§4.3, §7 "Fatal shard").
type Shard struct {
	spec       ShardSpec
	decoder    Decoder
	dialer     Dialer
	store      *depth.Store
	quiet      *QuietSet
	connBudget *ratelimit.ConnectionBudget
	egress     *proxy.Rotator
	cfg        config.StreamPoolConfig
	log        zerolog.Logger

	onTrade       func(Trade)
	onDepthUpdate func(venue, symbol string)

	mu         sync.Mutex
	state      State
	reconnects int
}

// NewShard builds a shard. egress and connBudget may be nil (direct dial,
// unlimited rate) for tests and for deployments with no proxy pool.
func NewShard(spec ShardSpec, decoder Decoder, dialer Dialer, store *depth.Store, quiet *QuietSet, connBudget *ratelimit.ConnectionBudget, egress *proxy.Rotator, cfg config.StreamPoolConfig, log zerolog.Logger) *Shard {
	return &Shard{
		spec: spec, decoder: decoder, dialer: dialer, store: store, quiet: quiet,
		connBudget: connBudget, egress: egress, cfg: cfg, log: log,
	}
}

// OnTrade registers the callback invoked for every decoded trade event.
func (sh *Shard) OnTrade(f func(Trade)) { sh.onTrade = f }

// OnDepthUpdate registers the callback invoked after every successfully
// applied depth diff or snapshot, so depth-driven detectors (WBI, whale
// wall) can re-evaluate the ladder without polling it.
func (sh *Shard) OnDepthUpdate(f func(venue, symbol string)) { sh.onDepthUpdate = f }

func (sh *Shard) setState(s State) {
	sh.mu.Lock()
	sh.state = s
	sh.mu.Unlock()
}

// State returns the shard's current protocol state (diagnostics/admin).
func (sh *Shard) State() State {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.state
}

// ID returns the shard's spec ID (metrics/admin labeling).
func (sh *Shard) ID() string { return sh.spec.ID }

// Venue returns the shard's venue name (metrics/admin labeling).
func (sh *Shard) Venue() string { return sh.spec.Venue }

// Reconnects returns the shard's current reconnect-attempt count since its
// last successful Streaming state (diagnostics/admin).
func (sh *Shard) Reconnects() int {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.reconnects
}

func backoffDuration(cfg config.StreamPoolConfig, attempt int) time.Duration {
	base := cfg.ReconnectMinBackoff
	for i := 0; i < attempt; i++ {
		base *= 2
		if base > cfg.ReconnectMaxBackoff {
			base = cfg.ReconnectMaxBackoff
			break
		}
	}
	if base <= 0 {
		base = time.Second
	}
	jitter := base.Seconds() * cfg.ReconnectJitterPct
	delta := (rand.Float64()*2 - 1) * jitter
	d := base + time.Duration(delta*float64(time.Second))
	if d < 0 {
		d = 0
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Run drives the shard until ctx is cancelled (returns nil) or the
// reconnect budget is exhausted (returns an ErrShardExhausted error for
// the Supervisor to act on per its restart policy).
func (sh *Shard) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		sh.setState(StateConnecting)
		conn, err := sh.dialWithBudget(ctx)
		if err != nil {
			if fatal := sh.countFailure(); fatal {
				return errkind.Wrap(errkind.ErrShardExhausted, fmt.Sprintf("shard %s exhausted reconnect budget dialing", sh.spec.ID))
			}
			sh.setState(StateReconnecting)
			if !sleepCtx(ctx, backoffDuration(sh.cfg, sh.reconnects)) {
				return nil
			}
			continue
		}

		sh.setState(StateSubscribing)
		subscribeErr := sh.subscribe(conn)
		if subscribeErr != nil {
			conn.Close()
			if fatal := sh.countFailure(); fatal {
				return errkind.Wrap(errkind.ErrShardExhausted, fmt.Sprintf("shard %s exhausted reconnect budget subscribing", sh.spec.ID))
			}
			sh.setState(StateReconnecting)
			if !sleepCtx(ctx, backoffDuration(sh.cfg, sh.reconnects)) {
				return nil
			}
			continue
		}

		sh.resyncBarrier()
		sh.setState(StateStreaming)
		sh.reconnects = 0
		streamErr := sh.streamLoop(ctx, conn)
		conn.Close()
		if streamErr == nil {
			return nil
		}

		sh.log.Warn().Err(streamErr).Str("shard", sh.spec.ID).Msg("stream: shard connection lost")
		if fatal := sh.countFailure(); fatal {
			return errkind.Wrap(errkind.ErrShardExhausted, fmt.Sprintf("shard %s exhausted reconnect budget streaming", sh.spec.ID))
		}
		sh.setState(StateReconnecting)
		if !sleepCtx(ctx, backoffDuration(sh.cfg, sh.reconnects)) {
			return nil
		}
	}
}

func (sh *Shard) subscribe(conn wsConn) error {
	frame, err := sh.decoder.SubscribeFrame(sh.spec.Streams, 1)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// countFailure increments the reconnect counter and reports whether the
// shard's budget is now exhausted.
func (sh *Shard) countFailure() bool {
	sh.reconnects++
	budget := sh.cfg.MaxReconnects
	if budget <= 0 {
		budget = 10
	}
	return sh.reconnects > budget
}

// dialWithBudget tries up to DialBudgetRetries egress identities (§4.3
// step 2: "a shard-local retry budget decides whether to roll to the next
// egress before the exponential back-off loop") before giving up for this
// attempt.
func (sh *Shard) dialWithBudget(ctx context.Context) (wsConn, error) {
	budget := sh.cfg.DialBudgetRetries
	if budget <= 0 {
		budget = 3
	}

	var lastErr error
	for i := 0; i < budget; i++ {
		identity := ""
		var proxyURL *url.URL
		if sh.egress != nil && !sh.egress.Empty() {
			id := sh.egress.Next()
			identity = id.Raw
			if u, err := parseProxyURL(identity); err == nil {
				proxyURL = u
			}
		}
		if sh.connBudget != nil {
			if err := sh.connBudget.WaitForSlot(ctx, identity); err != nil {
				return nil, err
			}
		}

		conn, err := sh.dialer.Dial(ctx, sh.spec.Endpoint, proxyURL)
		if err == nil {
			if sh.connBudget != nil {
				sh.connBudget.Record(identity)
			}
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// resyncBarrier clears every ladder owned by this shard and opens a quiet
// period for its symbols, per §4.3.
func (sh *Shard) resyncBarrier() {
	now := time.Now()
	for _, sym := range sh.spec.Symbols {
		sh.store.Reset(sh.spec.Venue, sym)
		sh.quiet.Mark(sh.spec.Venue, sym, now, sh.cfg.QuietPeriod)
	}
}

func (sh *Shard) streamLoop(ctx context.Context, conn wsConn) error {
	idle := sh.spec.ReceiveIdle
	if idle <= 0 {
		idle = 90 * time.Second
	}
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	// §4.3 step 4 requires both halves of the keepalive: reply pong to a
	// peer ping (below) and, on idle, send our own ping rather than rely
	// solely on the passive read-deadline timeout to force a reconnect.
	pinger := time.NewTicker(idle / 2)
	defer pinger.Stop()
	go func() {
		for {
			select {
			case <-pinger.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-watchDone:
				return
			}
		}
	}()

	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(idle)) })
	_ = conn.SetReadDeadline(time.Now().Add(idle))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		if payload, ok := sh.decoder.IsPing(msg); ok {
			_ = conn.WriteMessage(websocket.PongMessage, payload)
			continue
		}

		sh.handleMessage(msg)
		_ = conn.SetReadDeadline(time.Now().Add(idle))
	}
}

func (sh *Shard) handleMessage(msg []byte) {
	if trade, ok, err := sh.decoder.DecodeTrade(msg); err == nil && ok {
		trade.Venue = sh.spec.Venue
		trade.Market = sh.spec.Market
		if sh.onTrade != nil {
			sh.onTrade(trade)
		}
		return
	}

	if d, ok, err := sh.decoder.DecodeDepth(msg); err == nil && ok {
		ladder := sh.store.Ladder(sh.spec.Venue, d.Symbol)
		if d.Incremental {
			diff := depth.Diff{FirstUpdateID: d.FirstUpdateID, FinalUpdateID: d.FinalUpdateID}
			diff.Bids = toDepthLevels(d.Bids)
			diff.Asks = toDepthLevels(d.Asks)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = ladder.ApplyDiff(ctx, diff)
			cancel()
		} else {
			ladder.ApplyFullSnapshot(depth.Snapshot{
				Bids:         toDepthLevels(d.Bids),
				Asks:         toDepthLevels(d.Asks),
				LastUpdateID: d.FinalUpdateID,
			})
		}
		if sh.onDepthUpdate != nil {
			sh.onDepthUpdate(sh.spec.Venue, d.Symbol)
		}
		return
	}

	sh.log.Debug().Str("shard", sh.spec.ID).Msg("stream: unrecognized frame, skipping")
}

func toDepthLevels(in []WireLevel) []depth.Level {
	out := make([]depth.Level, len(in))
	for i, l := range in {
		out[i] = depth.Level{Price: l.Price, Size: l.Size}
	}
	return out
}
