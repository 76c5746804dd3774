package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/depth"
	"github.com/cryptosurveil/surveil/internal/proxy"
	"github.com/cryptosurveil/surveil/internal/ratelimit"
	"github.com/rs/zerolog"
)

// BuildShardSpecs partitions symbols into ⌈S/K⌉ shards of at most K
// streams each (§4.3 sharding). streamOf maps a canonical symbol to its
// venue wire-form stream name for the subscribe frame.
func BuildShardSpecs(venueName, market, endpoint string, symbols []string, maxPerConn int, receiveIdle time.Duration, streamOf func(symbol string) string) []ShardSpec {
	if maxPerConn <= 0 {
		maxPerConn = 50
	}
	n := len(symbols)
	shardCount := (n + maxPerConn - 1) / maxPerConn
	specs := make([]ShardSpec, 0, shardCount)
	for i := 0; i < shardCount; i++ {
		start := i * maxPerConn
		end := start + maxPerConn
		if end > n {
			end = n
		}
		chunk := symbols[start:end]
		streams := make([]string, len(chunk))
		for j, sym := range chunk {
			streams[j] = streamOf(sym)
		}
		specs = append(specs, ShardSpec{
			ID:          fmt.Sprintf("%s-%s-%d", venueName, market, i),
			Venue:       venueName,
			Market:      market,
			Endpoint:    endpoint,
			Symbols:     chunk,
			Streams:     streams,
			ReceiveIdle: receiveIdle,
		})
	}
	return specs
}

// Pool owns every running Shard and exposes stop() to drain all of them
// (§4.3: "The pool exposes stop() which cancels all shards and waits for
// drain").
type Pool struct {
	mu      sync.Mutex
	shards  []*Shard
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	onFatal func(shardID string, err error)
}

// NewPool builds an empty pool. Shards are added with Add before Start.
func NewPool() *Pool { return &Pool{} }

// OnFatal registers the callback invoked when a shard's Run returns a
// fatal (reconnect-budget-exhausted) error, letting the Supervisor apply
// its restart policy (§4.12).
func (p *Pool) OnFatal(f func(shardID string, err error)) { p.onFatal = f }

// Add registers a shard to be started by Start. Calling Add after Start
// has no effect on already-running shards.
func (p *Pool) Add(s *Shard) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shards = append(p.shards, s)
}

// Start launches every registered shard's Run loop under ctx.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.mu.Lock()
	shards := append([]*Shard(nil), p.shards...)
	p.mu.Unlock()

	for _, s := range shards {
		s := s
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := s.Run(runCtx); err != nil && p.onFatal != nil {
				p.onFatal(s.spec.ID, err)
			}
		}()
	}
}

// Stop cancels every shard and blocks until all have returned.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Shards returns a snapshot of registered shards (admin/metrics
// introspection).
func (p *Pool) Shards() []*Shard {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Shard(nil), p.shards...)
}

// NewDefaultShard is a convenience constructor wiring the production
// dependencies (gorilla/websocket dialer, shared depth store) for one
// shard spec.
func NewDefaultShard(spec ShardSpec, decoder Decoder, store *depth.Store, quiet *QuietSet, connBudget *ratelimit.ConnectionBudget, egress *proxy.Rotator, cfg config.StreamPoolConfig, log zerolog.Logger) *Shard {
	return NewShard(spec, decoder, WebsocketDialer{}, store, quiet, connBudget, egress, cfg, log)
}
