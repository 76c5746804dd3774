package detect

import (
	"testing"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/depth"
)

func slippageCfg() config.SlippageConfig {
	return config.DefaultThresholds().Slippage
}

func TestSlippage_BelowMinNotionalIgnored(t *testing.T) {
	d := NewSlippageDetector()
	cfg := slippageCfg()
	ladder := depth.NewLadder("BTC-USDT", depth.FullSnapshotMode, nil)
	ladder.ApplyFullSnapshot(depth.Snapshot{Asks: []depth.Level{{Price: 100, Size: 1000}}})

	trade := Trade{Venue: "binance", Symbol: "BTC-USDT", Market: "spot", Side: "buy", Price: 100, Size: 1, Ts: time.Now()}
	if _, fired := d.Evaluate(cfg, trade, ladder); fired {
		t.Fatal("expected trade below minimum notional to be ignored")
	}
}

func TestSlippage_FallbackThresholdWhenFewSamples(t *testing.T) {
	d := NewSlippageDetector()
	cfg := slippageCfg()
	ladder := depth.NewLadder("BTC-USDT", depth.FullSnapshotMode, nil)
	// ask side priced well above reference so slippage exceeds the 2% fallback;
	// four levels so skipTop=1 still leaves minLevels=3 usable.
	ladder.ApplyFullSnapshot(depth.Snapshot{Asks: []depth.Level{
		{Price: 100, Size: 10},
		{Price: 105, Size: 10},
		{Price: 110, Size: 10},
		{Price: 120, Size: 10000},
	}})

	trade := Trade{Venue: "binance", Symbol: "BTC-USDT", Market: "spot", Side: "buy", Price: 100, Size: 600, IsMajor: false, Ts: time.Now()}
	sig, fired := d.Evaluate(cfg, trade, ladder)
	if !fired {
		t.Fatal("expected slippage to exceed the minor-asset fallback threshold")
	}
	if sig.Kind != KindSlippage {
		t.Fatalf("unexpected kind: %v", sig.Kind)
	}
}

func TestSlippage_CooldownSuppressesRepeat(t *testing.T) {
	d := NewSlippageDetector()
	cfg := slippageCfg()
	ladder := depth.NewLadder("BTC-USDT", depth.FullSnapshotMode, nil)
	ladder.ApplyFullSnapshot(depth.Snapshot{Asks: []depth.Level{
		{Price: 100, Size: 10}, {Price: 105, Size: 10}, {Price: 110, Size: 10}, {Price: 120, Size: 10000},
	}})

	now := time.Now()
	trade := Trade{Venue: "binance", Symbol: "BTC-USDT", Market: "spot", Side: "buy", Price: 100, Size: 600, Ts: now}
	first, fired := d.Evaluate(cfg, trade, ladder)
	if !fired || first.CooldownSuppressed {
		t.Fatal("expected first alert to fire uncooled")
	}

	trade.Ts = now.Add(time.Second)
	second, fired := d.Evaluate(cfg, trade, ladder)
	if !fired {
		t.Fatal("expected a cooldown-suppressed signal, not silence")
	}
	if !second.CooldownSuppressed {
		t.Fatal("expected second alert within cooldown window to be suppressed")
	}
}
