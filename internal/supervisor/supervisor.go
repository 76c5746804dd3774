// Package supervisor implements C12: it brings up C1-C11 in dependency
// order, wires the stream pools' trade/depth callbacks into the detector
// suite and Alert Gate, and owns graceful shutdown. Grounded on the
// teacher's cmd/cryptorun/monitor_main.go bring-up/shutdown shape,
// generalized from one hardcoded HTTP server to the full component graph
// named in SPEC_FULL.md §4.12.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cryptosurveil/surveil/internal/admin"
	"github.com/cryptosurveil/surveil/internal/alertgate"
	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/depth"
	"github.com/cryptosurveil/surveil/internal/detect"
	"github.com/cryptosurveil/surveil/internal/dispatch"
	"github.com/cryptosurveil/surveil/internal/errkind"
	"github.com/cryptosurveil/surveil/internal/history"
	"github.com/cryptosurveil/surveil/internal/metrics"
	"github.com/cryptosurveil/surveil/internal/proxy"
	"github.com/cryptosurveil/surveil/internal/ratelimit"
	"github.com/cryptosurveil/surveil/internal/snapshot"
	"github.com/cryptosurveil/surveil/internal/stream"
	"github.com/cryptosurveil/surveil/internal/venue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// defaultQuoteAssets mirrors the greedy-suffix candidate set venue.Normalize
// uses internally, needed here to build each venue's GenericAdapter.
var defaultQuoteAssets = []string{
	"USDT", "USDC", "BUSD", "FDUSD", "TUSD", "USD", "EUR", "BTC", "ETH",
}

// majorAssets classifies the slippage detector's "major" flag (§4.7.2):
// the two deepest, most liquid base assets get the looser fallback/floor,
// everything else is treated as a thinner-book minor asset.
var majorAssets = map[string]bool{"BTC": true, "ETH": true}

// venueRuntime is everything the Supervisor owns per configured venue: its
// own depth.Store (so each venue's REST gap-repair fetcher is wired
// independently) and its own stream.Pool (so policy B, "shut down the
// venue cleanly", can cancel exactly that venue's shards).
type venueRuntime struct {
	cfg    config.VenueConfig
	store  *depth.Store
	pool   *stream.Pool
	specs  map[string][]stream.ShardSpec // market -> specs, kept for restarts
	cancel context.CancelFunc
	runCtx context.Context
}

// Supervisor wires and owns the lifecycle of every other component.
type Supervisor struct {
	cfg *config.StartupConfig
	hot *config.Hot
	log zerolog.Logger

	registry *venue.Registry
	hist     *history.Store
	quiet    *stream.QuietSet
	gate     *alertgate.Gate
	fanout   *dispatch.Fanout
	metrics  *metrics.Registry

	wbi      *detect.WBIDetector
	slippage *detect.SlippageDetector
	whale    *detect.WhaleDetector
	pumpDump  *detect.PumpDumpDetector
	basis     *detect.BasisDetector
	orderFlow *detect.OrderFlowDetector

	metricsSrv *metrics.Server
	adminSrv   *admin.Server
	egress     *proxy.Rotator

	mu     sync.Mutex
	venues map[string]*venueRuntime

	reloadSignal   chan struct{}
	fatalExhausted chan struct{}
	fatalOnce      sync.Once
}

// New builds every component from cfg/hot but starts nothing yet.
func New(cfg *config.StartupConfig, hot *config.Hot, log zerolog.Logger) (*Supervisor, error) {
	s := &Supervisor{
		cfg:            cfg,
		hot:            hot,
		log:            log.With().Str("component", "supervisor").Logger(),
		registry:       venue.NewRegistry(cfg.StableQuoteAssets, cfg.AutoConvertStable),
		hist:           history.NewStore(hot.Get().Whale.EMAWindow),
		quiet:          stream.NewQuietSet(),
		wbi:            detect.NewWBIDetector(),
		slippage:       detect.NewSlippageDetector(),
		whale:          detect.NewWhaleDetector(),
		pumpDump:       detect.NewPumpDumpDetector(),
		basis:          detect.NewBasisDetector(),
		orderFlow:      detect.NewOrderFlowDetector(),
		venues:         make(map[string]*venueRuntime),
		egress:         proxy.NewRotator(cfg.Proxies),
		reloadSignal:   make(chan struct{}, 1),
		fatalExhausted: make(chan struct{}),
	}

	dedup, err := s.buildDedup()
	if err != nil {
		return nil, err
	}
	s.gate = alertgate.NewGate(dedup)

	reg := prometheus.NewRegistry()
	s.metrics = metrics.NewRegistry(reg)

	s.fanout = s.buildFanout()

	for _, vc := range cfg.Venues {
		if err := s.addVenue(vc); err != nil {
			return nil, fmt.Errorf("supervisor: wiring venue %s: %w", vc.Name, err)
		}
	}

	s.metricsSrv = metrics.NewServer("0.0.0.0", cfg.MetricsPort, reg, metrics.NewHealthHandler("surveil", s.shardSnapshots), s.log)
	s.adminSrv = admin.NewServer("0.0.0.0", cfg.AdminPort, s.registry, hot, s.log)

	return s, nil
}

func (s *Supervisor) buildDedup() (alertgate.DedupCache, error) {
	if s.cfg.RedisURL == "" {
		return alertgate.NewInProcessDedup(), nil
	}
	opt, err := redis.ParseURL(s.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)
	return alertgate.NewRedisDedup(client, "surveil:dedup:"), nil
}

func (s *Supervisor) buildFanout() *dispatch.Fanout {
	th := s.hot.Get()
	sinks := []dispatch.Sink{dispatch.NewLogSink(s.log, th.Dispatch.SinkQueueDepth)}

	storeCfg := dispatch.DefaultStoreConfig()
	storeCfg.DSN = s.cfg.PostgresDSN
	storeCfg.BatchSize = th.Dispatch.StoreBatchSize
	storeCfg.QueueDepth = th.Dispatch.SinkQueueDepth
	sinks = append(sinks, dispatch.NewStoreSink(storeCfg, s.log))

	if s.cfg.PushNormalToken != "" || s.cfg.PushUrgentToken != "" {
		sinks = append(sinks, dispatch.NewTelegramSink(dispatch.PushConfig{
			NormalToken: s.cfg.PushNormalToken, NormalChatID: s.cfg.PushNormalChatID,
			UrgentToken: s.cfg.PushUrgentToken, UrgentChatID: s.cfg.PushUrgentChatID,
			RateLimitPerMin: th.Dispatch.PushRateLimitPerMin, QueueDepth: th.Dispatch.SinkQueueDepth,
		}, s.log))
	}

	if s.cfg.FirebaseCredsFile != "" {
		sinks = append(sinks, dispatch.NewFCMSink(context.Background(), dispatch.FCMConfig{
			CredentialsFile: s.cfg.FirebaseCredsFile, Topic: "surveil-alerts",
			QueueDepth: th.Dispatch.SinkQueueDepth,
		}, s.log))
	}

	return dispatch.NewFanout(sinks...)
}

// marketTypesOf applies the §6 "monitored market selector" (all | spot |
// perp | comma-list) on top of a venue's own configured market types: the
// selector narrows, it never widens beyond what the venue supports.
func marketTypesOf(raw []string, selector config.MarketSelector) []venue.MarketType {
	allowed := map[string]bool{}
	switch selector {
	case config.MarketSpot:
		allowed["spot"] = true
	case config.MarketPerp:
		allowed["perp"] = true
	case config.MarketAll, "":
		allowed["spot"], allowed["perp"] = true, true
	default:
		for _, part := range splitCommaList(string(selector)) {
			allowed[part] = true
		}
	}

	out := make([]venue.MarketType, 0, len(raw))
	for _, m := range raw {
		if !allowed[m] {
			continue
		}
		if m == "perp" {
			out = append(out, venue.Perp)
		} else {
			out = append(out, venue.Spot)
		}
	}
	if len(out) == 0 {
		out = append(out, venue.Spot)
	}
	return out
}

func splitCommaList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func (s *Supervisor) addVenue(vc config.VenueConfig) error {
	adapter := venue.NewGenericAdapter("", defaultQuoteAssets, "-PERP")
	marketTypes := marketTypesOf(vc.MarketTypes, s.cfg.MarketSelector)

	s.registry.Register(&venue.Venue{
		Name: vc.Name, StreamEndpoint: vc.StreamEndpoint, RESTEndpoint: vc.RESTEndpoint,
		MarketTypes: marketTypes, Adapter: adapter,
	})

	fetcher := snapshot.NewFetcher(snapshot.Config{
		Venue:          vc.Name,
		RequestTimeout: vc.DialTimeout,
		URLFor: func(symbol string) string {
			return fmt.Sprintf("%s/depth?symbol=%s", vc.RESTEndpoint, symbol)
		},
	}, s.log)

	store := depth.NewStore(depth.IncrementalMode, fetcher)
	connBudget := ratelimit.NewConnectionBudget(vc.MaxConnsPerEgress5Min, 5*time.Minute)

	rt := &venueRuntime{cfg: vc, store: store, pool: stream.NewPool(), specs: make(map[string][]stream.ShardSpec)}
	s.mu.Lock()
	s.venues[vc.Name] = rt
	s.mu.Unlock()

	th := s.hot.Get()
	for _, mt := range marketTypes {
		market := string(mt)
		maxPerConn := vc.MaxStreamsPerConnSpot
		if mt == venue.Perp {
			maxPerConn = vc.MaxStreamsPerConnPerp
		}
		seedRankingFromStaticList(s.registry, vc.Name, mt, vc.Symbols)
		symbols := wireSymbolsFor(s.registry, vc.Name, mt)
		specs := stream.BuildShardSpecs(vc.Name, market, vc.StreamEndpoint, symbols, maxPerConn, vc.ReceiveIdle,
			func(symbol string) string { return symbol })
		rt.specs[market] = specs

		for _, spec := range specs {
			sh := stream.NewDefaultShard(spec, stream.GenericDecoder{}, store, s.quiet, connBudget, s.egress, th.StreamPool, s.log)
			sh.OnTrade(s.handleTrade(vc.Name, mt))
			sh.OnDepthUpdate(s.handleDepthUpdate(store))
			rt.pool.Add(sh)
		}
	}

	rt.pool.OnFatal(s.handleFatalShard(vc.Name))
	return nil
}

// seedRankingFromStaticList installs a zero-volume ranked list from a
// static per-venue symbol config when the registry has not yet been
// populated by an external volume-ranking feed, so listSymbols (and hence
// shard construction) is never empty on a cold start.
func seedRankingFromStaticList(reg *venue.Registry, venueName string, market venue.MarketType, wireSymbols []string) {
	if len(reg.ListSymbols(venueName, market)) > 0 || len(wireSymbols) == 0 {
		return
	}
	ranked := make([]venue.RankedSymbol, 0, len(wireSymbols))
	for _, wire := range wireSymbols {
		cs, err := reg.FromWire(venueName, wire, market)
		if err != nil {
			continue
		}
		ranked = append(ranked, venue.RankedSymbol{Symbol: cs, Market: market})
	}
	reg.UpdateVolumeRanking(venueName, market, ranked)
}

func wireSymbolsFor(reg *venue.Registry, venueName string, market venue.MarketType) []string {
	ranked := reg.ListSymbols(venueName, market)
	if len(ranked) == 0 {
		return nil
	}
	out := make([]string, 0, len(ranked))
	for _, rs := range ranked {
		if wire, ok := reg.ToWire(venueName, rs.Symbol, market); ok {
			out = append(out, wire)
		}
	}
	return out
}

func (s *Supervisor) handleTrade(venueName string, market venue.MarketType) func(stream.Trade) {
	return func(tr stream.Trade) {
		th := s.hot.Get()
		cs, err := s.registry.FromWire(venueName, tr.Symbol, market)
		if err != nil {
			return
		}
		symbolKey := cs.Display()
		hist := s.hist.For(venueName, symbolKey)
		hist.Insert(tr.Ts, tr.Price, tr.Size)

		dt := detect.Trade{
			Venue: venueName, Symbol: symbolKey, Market: string(market),
			Side: tr.TakerSide(), Price: tr.Price, Size: tr.Size, Ts: tr.Ts,
			IsMajor: majorAssets[cs.Base],
		}

		s.metrics.RecordTrade(venueName)

		rt := s.venueRuntime(venueName)
		if rt == nil {
			return
		}
		ladder := rt.store.Ladder(venueName, tr.Symbol)
		if sig, fired := s.slippage.Evaluate(th.Slippage, dt, ladder); fired {
			s.ingest(sig)
		}

		ema24h := s.quoteVolume24h(venueName, market, cs)
		for _, sig := range s.whale.ObserveTrade(th.Whale, venueName, symbolKey, dt, ema24h, hist, tr.Ts) {
			s.ingest(sig)
		}

		if sig := s.pumpDump.Evaluate(th.PumpDump, venueName, symbolKey, tr.Price, hist, tr.Ts); sig != nil {
			s.ingest(sig)
		}

		if sig, fired := s.orderFlow.Evaluate(th.OrderFlow, dt); fired {
			s.ingest(sig)
		}

		if market == venue.Spot {
			s.basis.ObserveSpot(symbolKey, tr.Price, tr.Ts)
		} else if sig := s.basis.ObservePerp(th.Basis, symbolKey, tr.Price, tr.Ts); sig != nil {
			s.ingest(sig)
		}
	}
}

func (s *Supervisor) handleDepthUpdate(store *depth.Store) func(venueName, symbol string) {
	return func(venueName, symbol string) {
		th := s.hot.Get()
		now := time.Now()
		ladder := store.Ladder(venueName, symbol)

		bids := ladder.TopN(depth.Bid, th.WBI.TopK)
		asks := ladder.TopN(depth.Ask, th.WBI.TopK)
		if sig, fired := s.wbi.Evaluate(th.WBI, venueName, symbol, bids, asks, now); fired {
			s.ingest(sig)
		}

		if s.quiet.Active(venueName, symbol, now) {
			return
		}

		// Scan the same top-K levels already fetched for WBI on both sides,
		// rather than just the best price, so a wall resting a few levels
		// deep is still caught. stillPresent feeds PruneWalls so a level
		// that drops out of the top-K (filled, cancelled, or priced away)
		// is forgotten instead of accumulating in whale.go's walls map
		// forever (§5 Memory Discipline).
		stillPresent := make(map[float64]bool, len(bids)+len(asks))
		for _, lv := range bids {
			stillPresent[lv.Price] = true
			if sig, fired := s.whale.ObserveWallLevel(th.Whale, venueName, symbol, lv.Price, lv.Price*lv.Size, now); fired {
				s.ingest(sig)
			}
		}
		for _, lv := range asks {
			stillPresent[lv.Price] = true
			if sig, fired := s.whale.ObserveWallLevel(th.Whale, venueName, symbol, lv.Price, lv.Price*lv.Size, now); fired {
				s.ingest(sig)
			}
		}
		s.whale.PruneWalls(venueName, symbol, stillPresent)

		if mid, ok := ladder.Mid(); ok {
			hist := s.hist.For(venueName, symbol)
			if sig := s.pumpDump.Evaluate(th.PumpDump, venueName, symbol, mid, hist, now); sig != nil {
				s.ingest(sig)
			}
		}
	}
}

func (s *Supervisor) ingest(sig *detect.Signal) {
	if sig == nil {
		return
	}
	th := s.hot.Get()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if alert, ok := s.gate.Ingest(ctx, th.AlertGate, sig); ok {
		s.metrics.RecordAlert(string(alert.Severity), alert.Venue, string(alert.Kind))
		s.fanout.Submit(*alert)
	}
}

func (s *Supervisor) quoteVolume24h(venueName string, market venue.MarketType, cs venue.CanonicalSymbol) float64 {
	for _, rs := range s.registry.ListSymbols(venueName, market) {
		if rs.Symbol == cs {
			return rs.QuoteVolume24h
		}
	}
	return 0
}

func (s *Supervisor) venueRuntime(name string) *venueRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.venues[name]
}

// handleFatalShard implements §4.12's restart policy: policy A restarts
// the exhausted shard in place; policy B cancels the owning venue's whole
// pool, a clean shutdown of just that venue.
func (s *Supervisor) handleFatalShard(venueName string) func(shardID string, err error) {
	return func(shardID string, err error) {
		s.log.Error().Err(err).Str("venue", venueName).Str("shard", shardID).Msg("supervisor: shard fatally exhausted")

		rt := s.venueRuntime(venueName)
		if rt == nil {
			return
		}

		if s.cfg.RestartPolicy == config.PolicyShutdownVenue {
			s.log.Warn().Str("venue", venueName).Msg("supervisor: shutting down venue per restart policy")
			if rt.cancel != nil {
				rt.cancel()
			}
			if s.allVenuesShutDown() {
				s.fatalOnce.Do(func() { close(s.fatalExhausted) })
			}
			return
		}

		for _, sh := range rt.pool.Shards() {
			if sh.ID() != shardID {
				continue
			}
			s.log.Info().Str("shard", shardID).Msg("supervisor: restarting shard per restart policy")
			go func() {
				ctx := s.venueCtx(venueName)
				if ctx == nil {
					return
				}
				_ = sh.Run(ctx)
			}()
			return
		}
	}
}

// allVenuesShutDown reports whether every configured venue's run context
// has been cancelled, meaning policy-B restarts have exhausted the whole
// service rather than one venue (§6 exit code 2: "unrecoverable shard
// exhaustion under policy B").
func (s *Supervisor) allVenuesShutDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rt := range s.venues {
		if rt.runCtx == nil || rt.runCtx.Err() == nil {
			return false
		}
	}
	return len(s.venues) > 0
}

func (s *Supervisor) venueCtx(name string) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.venues[name]
	if !ok {
		return nil
	}
	return rt.runCtx
}

// shardSnapshots feeds /health with a flat view of every shard across every
// venue's pool.
func (s *Supervisor) shardSnapshots() []metrics.ShardSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []metrics.ShardSnapshot
	for venueName, rt := range s.venues {
		for _, sh := range rt.pool.Shards() {
			out = append(out, metrics.ShardSnapshot{
				ID: sh.ID(), Venue: venueName, State: sh.State().String(), Reconnects: sh.Reconnects(),
			})
		}
		s.metrics.SetActiveConnections(venueName, len(rt.pool.Shards()))
	}
	return out
}

// TriggerReload requests an immediate Hot Config reload, for the CLI's
// SIGHUP handler to call outside of Watch's poll interval.
func (s *Supervisor) TriggerReload() {
	select {
	case s.reloadSignal <- struct{}{}:
	default:
	}
}

// Run starts every component and blocks until ctx is cancelled, then drains
// and shuts down within cfg.ShutdownDrain.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	// runCtx drives every non-venue background goroutine below. It is
	// derived from ctx but cancelled explicitly on either shutdown
	// trigger, so a fatalExhausted-triggered exit (where ctx itself stays
	// live) still unblocks fanout/metrics/admin/hot-reload/flush promptly
	// instead of waiting out the full drain timeout.
	runCtx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	s.mu.Lock()
	runtimes := make([]*venueRuntime, 0, len(s.venues))
	for _, rt := range s.venues {
		venCtx, cancel := context.WithCancel(ctx)
		rt.cancel = cancel
		rt.runCtx = venCtx
		rt.pool.Start(venCtx)
		runtimes = append(runtimes, rt)
	}
	s.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.fanout.Run(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.metricsSrv.Start(runCtx); err != nil {
			s.log.Error().Err(err).Msg("supervisor: metrics server exited with error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.adminSrv.Start(runCtx); err != nil {
			s.log.Error().Err(err).Msg("supervisor: admin server exited with error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.hot.Watch(runCtx, s.cfg.ReloadPollInterval, s.reloadSignal)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.flushLoop(runCtx)
	}()

	var fatal bool
	select {
	case <-ctx.Done():
		s.log.Info().Msg("supervisor: shutdown signal observed, draining")
	case <-s.fatalExhausted:
		fatal = true
		s.log.Error().Msg("supervisor: every venue shut down under restart policy, draining")
	}
	cancelAll()

	drain := s.cfg.ShutdownDrain
	if drain <= 0 {
		drain = 5 * time.Second
	}

	s.forceFlushAll()

	done := make(chan struct{})
	go func() {
		for _, rt := range runtimes {
			rt.pool.Stop()
		}
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drain):
		s.log.Warn().Msg("supervisor: shutdown drain deadline exceeded, forcing exit")
	}

	if fatal {
		return errkind.Wrap(errkind.ErrShardExhausted, "every configured venue was shut down under restart policy")
	}
	return nil
}

func (s *Supervisor) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			th := s.hot.Get()
			for _, alert := range s.gate.Flush(th.AlertGate, time.Now()) {
				s.metrics.RecordAlert(string(alert.Severity), alert.Venue, string(alert.Kind))
				s.fanout.Submit(alert)
			}
		}
	}
}

// forceFlushAll closes every still-open aggregation bucket regardless of
// its window, by flushing with a now far enough in the future that every
// bucket's elapsed-window check passes (§4.12: "flush aggregation buckets
// to the Dispatch Fan-out" on shutdown).
func (s *Supervisor) forceFlushAll() {
	th := s.hot.Get()
	future := time.Now().Add(th.AlertGate.AggregationWindow + time.Second)
	for _, alert := range s.gate.Flush(th.AlertGate, future) {
		s.fanout.Submit(alert)
	}
}
