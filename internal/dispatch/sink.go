// Package dispatch implements C9: the Dispatch Fan-out. Every finished
// Alert record leaving the Alert Gate is handed to a Fanout, which pushes
// it to every registered Sink without letting a slow or failing sink block
// the others (§5: "sink enqueues when the sink applies backpressure" is a
// suspension point local to that sink's own goroutine, never the caller's).
package dispatch

import (
	"context"

	"github.com/cryptosurveil/surveil/internal/alertgate"
)

// Sink is one delivery channel for finished Alert records: the structured
// log, the Postgres store, the Telegram push channels, the optional FCM
// fan-out. A Sink never blocks its caller — Submit either enqueues or drops
// with a counter (§7: "Sink overflow ... drop with counter; do not block
// producers").
type Sink interface {
	Name() string
	Submit(a alertgate.Alert)
	Run(ctx context.Context)
	Dropped() uint64
}

// Fanout owns a fixed set of sinks and broadcasts every Alert to all of
// them. A sink panicking or blocking inside Submit cannot be fully
// guarded against (Submit must be cheap and non-blocking by contract), but
// Run bodies are isolated goroutines, so one sink's failure to keep up
// never stalls another's worker loop.
type Fanout struct {
	sinks []Sink
}

// NewFanout builds a Fanout over the given sinks, in the order they should
// be queried for diagnostics (order has no effect on delivery, which is
// always broadcast to all).
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Run starts every sink's worker loop, returning once ctx is cancelled and
// all workers have exited.
func (f *Fanout) Run(ctx context.Context) {
	done := make(chan struct{}, len(f.sinks))
	for _, s := range f.sinks {
		s := s
		go func() {
			s.Run(ctx)
			done <- struct{}{}
		}()
	}
	for range f.sinks {
		<-done
	}
}

// Submit broadcasts a to every sink. Each Sink.Submit is expected to be
// non-blocking (a channel send with a default case, as the log sink does).
func (f *Fanout) Submit(a alertgate.Alert) {
	for _, s := range f.sinks {
		s.Submit(a)
	}
}

// Sinks exposes the underlying sinks for metrics collection (drop
// counters) and admin introspection.
func (f *Fanout) Sinks() []Sink { return f.sinks }
