package replay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptosurveil/surveil/internal/alertgate"
	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/dispatch"
	"github.com/cryptosurveil/surveil/internal/stream"
	"github.com/rs/zerolog"
)

const sampleCSV = `ts,symbol,venue,market,side,price,size,isBuyerMaker
2026-01-01T00:00:00Z,BTC-USDT,binance,spot,buy,100,1,false
2026-01-01T00:00:05Z,BTC-USDT,binance,spot,buy,110,1,false
`

func TestLoadCSV_ParsesRowsInOrder(t *testing.T) {
	events, err := parseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "BTC-USDT", events[0].Symbol)
	assert.Equal(t, "binance", events[0].Venue)
	assert.Equal(t, "spot", events[0].Market)
	assert.Equal(t, 100.0, events[0].Price)
	assert.Equal(t, 110.0, events[1].Price)
	assert.False(t, events[0].IsBuyerMaker)
	assert.True(t, events[1].Ts.After(events[0].Ts))
}

func TestLoadCSV_MissingColumnErrors(t *testing.T) {
	_, err := parseCSV(strings.NewReader("ts,symbol,venue,market,side,price,size\n2026-01-01T00:00:00Z,X,b,spot,buy,1,1\n"))
	require.Error(t, err)
}

func TestMockPool_EmitsEventsAsFastAsPossibleWhenUnpaced(t *testing.T) {
	events, err := parseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var got []stream.Trade
	pool := NewMockPool()
	pool.OnTrade(func(tr stream.Trade) { got = append(got, tr) })

	start := time.Now()
	require.NoError(t, pool.Run(context.Background(), events, 0))
	assert.LessOrEqual(t, time.Since(start), time.Second, "expected unpaced replay to finish quickly")
	require.Len(t, got, 2)
	assert.Equal(t, "BTC-USDT", got[0].Symbol)
	assert.Equal(t, 110.0, got[1].Price)
}

func TestMockPool_RespectsContextCancellation(t *testing.T) {
	events, err := parseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewMockPool()
	var count int
	pool.OnTrade(func(stream.Trade) { count++ })
	require.Error(t, pool.Run(ctx, events, 1.0))
	assert.Zero(t, count, "expected no trades emitted once ctx is already cancelled")
}

type recordingSink struct {
	name    string
	alerts  []alertgate.Alert
	dropped uint64
}

func (s *recordingSink) Name() string             { return s.name }
func (s *recordingSink) Submit(a alertgate.Alert) { s.alerts = append(s.alerts, a) }
func (s *recordingSink) Run(ctx context.Context)  { <-ctx.Done() }
func (s *recordingSink) Dropped() uint64          { return s.dropped }

func TestRunner_PumpExcursionProducesAlert(t *testing.T) {
	hot, err := config.NewHot("", zerolog.Nop())
	require.NoError(t, err)

	sink := &recordingSink{name: "test"}
	fanout := dispatch.NewFanout(sink)
	runner := NewRunner(hot, fanout, nil, zerolog.Nop())

	events := []Event{
		{Ts: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Symbol: "BTC-USDT", Venue: "binance", Market: "spot", Price: 100, Size: 1},
		{Ts: time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC), Symbol: "BTC-USDT", Venue: "binance", Market: "spot", Price: 110, Size: 1},
	}

	require.NoError(t, runner.Run(context.Background(), events, 0))

	found := false
	for _, a := range sink.alerts {
		if string(a.Kind) == "pump" {
			found = true
		}
	}
	assert.True(t, found, "expected a pump alert among dispatched alerts, got %+v", sink.alerts)
}
