package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cryptosurveil/surveil/internal/alertgate"
)

type recordingSink struct {
	mu      sync.Mutex
	name    string
	got     []alertgate.Alert
	dropped uint64
	submit  chan alertgate.Alert
}

func newRecordingSink(name string) *recordingSink {
	return &recordingSink{name: name, submit: make(chan alertgate.Alert, 16)}
}

func (r *recordingSink) Name() string { return r.name }
func (r *recordingSink) Submit(a alertgate.Alert) {
	r.submit <- a
}
func (r *recordingSink) Dropped() uint64 { return r.dropped }
func (r *recordingSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-r.submit:
			r.mu.Lock()
			r.got = append(r.got, a)
			r.mu.Unlock()
		}
	}
}
func (r *recordingSink) snapshot() []alertgate.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]alertgate.Alert, len(r.got))
	copy(out, r.got)
	return out
}

func TestFanout_BroadcastsToAllSinks(t *testing.T) {
	a := newRecordingSink("a")
	b := newRecordingSink("b")
	f := NewFanout(a, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { f.Run(ctx); close(done) }()

	f.Submit(alertgate.Alert{ID: "x1"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(a.snapshot()) == 1 && len(b.snapshot()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(a.snapshot()) != 1 || len(b.snapshot()) != 1 {
		t.Fatalf("expected both sinks to receive the alert, got a=%d b=%d", len(a.snapshot()), len(b.snapshot()))
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Fanout.Run to return once all sinks stop")
	}
}

func TestFanout_SinksIsolated(t *testing.T) {
	a := newRecordingSink("a")
	f := NewFanout(a)
	if len(f.Sinks()) != 1 {
		t.Fatalf("expected 1 sink, got %d", len(f.Sinks()))
	}
}
