package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cryptosurveil/surveil/internal/depth"
)

func TestBuildShardSpecs_CeilingDivisionAndChunking(t *testing.T) {
	symbols := []string{"A", "B", "C", "D", "E"}
	specs := BuildShardSpecs("binance", "spot", "wss://x", symbols, 2, 30*time.Second, func(s string) string { return s + "@trade" })

	if len(specs) != 3 {
		t.Fatalf("expected ceil(5/2)=3 shards, got %d", len(specs))
	}
	if len(specs[0].Symbols) != 2 || len(specs[1].Symbols) != 2 || len(specs[2].Symbols) != 1 {
		t.Fatalf("unexpected chunk sizes: %v %v %v", specs[0].Symbols, specs[1].Symbols, specs[2].Symbols)
	}
	if specs[0].Symbols[0] != "A" || specs[2].Symbols[0] != "E" {
		t.Fatalf("expected contiguous chunking, got %v", specs)
	}
	for _, s := range specs {
		if s.ReceiveIdle != 30*time.Second {
			t.Fatalf("expected ReceiveIdle threaded through, got %v", s.ReceiveIdle)
		}
		if s.Streams[0] == "" {
			t.Fatalf("expected streamOf applied")
		}
	}
}

func TestBuildShardSpecs_DefaultMaxPerConn(t *testing.T) {
	symbols := make([]string, 120)
	for i := range symbols {
		symbols[i] = "S"
	}
	specs := BuildShardSpecs("binance", "spot", "wss://x", symbols, 0, 0, func(s string) string { return s })
	if len(specs) != 3 {
		t.Fatalf("expected default maxPerConn=50 -> ceil(120/50)=3 shards, got %d", len(specs))
	}
}

func TestPool_StartStopDrainsAllShards(t *testing.T) {
	refused := errors.New("refused")
	dialer := &fakeDialer{results: []dialResult{{err: refused}, {err: refused}, {err: refused}}}
	store := depth.NewStore(depth.FullSnapshotMode, nil)
	quiet := NewQuietSet()
	spec := ShardSpec{ID: "p0", Venue: "v", Symbols: []string{"X"}, Streams: []string{"x@trade"}}
	sh := testShard(spec, dialer, store, quiet, testCfg())

	p := NewPool()
	p.Add(sh)

	fatalCh := make(chan string, 1)
	p.OnFatal(func(shardID string, err error) { fatalCh <- shardID })

	p.Start(context.Background())

	select {
	case id := <-fatalCh:
		if id != "p0" {
			t.Fatalf("expected fatal for shard p0, got %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fatal callback")
	}

	if got := len(p.Shards()); got != 1 {
		t.Fatalf("expected 1 registered shard, got %d", got)
	}
	p.Stop()
}
