package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/cryptosurveil/surveil/internal/alertgate"
	"github.com/rs/zerolog"
)

// LogSink is always on: every Alert is written as a structured log line
// regardless of what other sinks are configured, so there is never a
// configuration in which an alert leaves no trace (§6 persisted state
// layout treats the log as the baseline record).
type LogSink struct {
	log     zerolog.Logger
	queue   chan alertgate.Alert
	dropped uint64
}

// NewLogSink builds a log sink with a small buffer; since logging is cheap
// and synchronous in practice the buffer exists only to absorb bursts
// without the producer blocking.
func NewLogSink(log zerolog.Logger, queueDepth int) *LogSink {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &LogSink{log: log, queue: make(chan alertgate.Alert, queueDepth)}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Submit(a alertgate.Alert) {
	select {
	case s.queue <- a:
	default:
		atomic.AddUint64(&s.dropped, 1)
		s.log.Warn().Str("sink", "log").Msg("alert queue full, dropping")
	}
}

func (s *LogSink) Dropped() uint64 { return atomic.LoadUint64(&s.dropped) }

func (s *LogSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-s.queue:
			s.log.Info().
				Str("id", a.ID).
				Str("venue", a.Venue).
				Str("symbol", a.Symbol).
				Str("kind", string(a.Kind)).
				Str("severity", string(a.Severity)).
				Str("direction", a.Direction).
				Float64("value", a.Value).
				Float64("price", a.Price).
				Int("count", a.Count).
				Str("reason", a.Reason).
				Msg("alert")
		}
	}
}
