package replay

import (
	"context"
	"time"

	"github.com/cryptosurveil/surveil/internal/stream"
)

// MockPool stands in for C3's Stream Client Pool during replay: instead of
// dialing a venue it emits recorded events in their recorded order,
// paced by speed (1.0 = wall-clock, 0 = as fast as possible, >1.0 =
// accelerated), in the exact stream.Trade shape the real shards emit so
// everything downstream of C3 is unchanged.
type MockPool struct {
	onTrade func(stream.Trade)
}

// NewMockPool builds an idle pool; call OnTrade before Run.
func NewMockPool() *MockPool { return &MockPool{} }

// OnTrade registers the callback invoked for every replayed event.
func (p *MockPool) OnTrade(f func(stream.Trade)) { p.onTrade = f }

// Run emits every event in order until ctx is cancelled or the slice is
// exhausted. Gaps between consecutive events' recorded timestamps are
// slept (scaled by speed) between emissions; speed<=0 disables pacing
// entirely and replays as fast as possible.
func (p *MockPool) Run(ctx context.Context, events []Event, speed float64) error {
	var prev time.Time
	for i, ev := range events {
		if i == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		} else if speed > 0 {
			delta := ev.Ts.Sub(prev)
			if delta > 0 {
				if !sleepCtx(ctx, time.Duration(float64(delta)/speed)) {
					return ctx.Err()
				}
			}
		}
		prev = ev.Ts

		if p.onTrade != nil {
			p.onTrade(stream.Trade{
				Venue:        ev.Venue,
				Symbol:       ev.Symbol,
				Market:       ev.Market,
				Price:        ev.Price,
				Size:         ev.Size,
				IsBuyerMaker: ev.IsBuyerMaker,
				Ts:           ev.Ts,
			})
		}
	}
	return nil
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
