package detect

import (
	"testing"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/depth"
)

func wbiCfg() config.WBIConfig {
	return config.DefaultThresholds().WBI
}

func skewedBook(buyHeavy bool) ([]depth.Level, []depth.Level) {
	if buyHeavy {
		return []depth.Level{{Price: 100, Size: 1000}, {Price: 99.9, Size: 1000}},
			[]depth.Level{{Price: 100.1, Size: 1}, {Price: 100.2, Size: 1}}
	}
	return []depth.Level{{Price: 100, Size: 1}, {Price: 99.9, Size: 1}},
		[]depth.Level{{Price: 100.1, Size: 1000}, {Price: 100.2, Size: 1000}}
}

func TestWBI_WarmupSuppressesAlerts(t *testing.T) {
	d := NewWBIDetector()
	cfg := wbiCfg()
	now := time.Now()
	bids, asks := skewedBook(true)

	for i := 0; i < cfg.WarmupTicks; i++ {
		sig, fired := d.Evaluate(cfg, "binance", "BTC-USDT", bids, asks, now.Add(time.Duration(i)*time.Second))
		if fired {
			t.Fatalf("unexpected alert during warmup at tick %d: %+v", i, sig)
		}
	}
}

func TestWBI_CrossMarketSkipsEvaluation(t *testing.T) {
	d := NewWBIDetector()
	cfg := wbiCfg()
	now := time.Now()
	bids := []depth.Level{{Price: 101, Size: 1}}
	asks := []depth.Level{{Price: 100, Size: 1}}

	sig, fired := d.Evaluate(cfg, "binance", "BTC-USDT", bids, asks, now)
	if fired || sig != nil {
		t.Fatal("expected no signal for a crossed book")
	}
	st := d.states[wbiKey("binance", "BTC-USDT")]
	if st.state != WBICrossMarket {
		t.Fatalf("expected CrossMarket state, got %v", st.state)
	}
}

func TestWBI_SustainedImbalanceFiresAfterConfirmTicks(t *testing.T) {
	d := NewWBIDetector()
	cfg := wbiCfg()
	now := time.Now()
	bids, asks := skewedBook(true)

	// warm up on a neutral book first
	neutralBids := []depth.Level{{Price: 100, Size: 10}, {Price: 99.9, Size: 10}}
	neutralAsks := []depth.Level{{Price: 100.1, Size: 10}, {Price: 100.2, Size: 10}}
	tick := now
	for i := 0; i < cfg.WarmupTicks; i++ {
		tick = tick.Add(time.Second)
		d.Evaluate(cfg, "binance", "BTC-USDT", neutralBids, neutralAsks, tick)
	}

	var lastSignal *Signal
	fired := false
	for i := 0; i < cfg.ConfirmTicks+2; i++ {
		tick = tick.Add(time.Second)
		sig, ok := d.Evaluate(cfg, "binance", "BTC-USDT", bids, asks, tick)
		if ok {
			lastSignal = sig
			fired = true
			break
		}
	}
	if !fired {
		t.Fatal("expected WBI to fire after sustained buy-side imbalance")
	}
	if lastSignal.Direction != "buy" {
		t.Fatalf("expected buy direction, got %s", lastSignal.Direction)
	}
	if lastSignal.CooldownSuppressed {
		t.Fatal("first alert should not be cooldown-suppressed")
	}
}

func TestWBI_Sweep(t *testing.T) {
	d := NewWBIDetector()
	cfg := wbiCfg()
	now := time.Now()
	bids, asks := skewedBook(true)
	d.Evaluate(cfg, "binance", "BTC-USDT", bids, asks, now)

	if d.TrackedSymbols() != 1 {
		t.Fatalf("expected 1 tracked symbol, got %d", d.TrackedSymbols())
	}

	removed := d.Sweep(now.Add(2*time.Hour), time.Hour, 0)
	if removed != 1 {
		t.Fatalf("expected sweep to remove the stale symbol, removed=%d", removed)
	}
	if d.TrackedSymbols() != 0 {
		t.Fatal("expected no tracked symbols after sweep")
	}
}

func TestWBI_SweepRespectsMaxTracked(t *testing.T) {
	d := NewWBIDetector()
	cfg := wbiCfg()
	now := time.Now()
	bids, asks := skewedBook(true)
	d.Evaluate(cfg, "binance", "BTC-USDT", bids, asks, now)

	removed := d.Sweep(now.Add(2*time.Hour), time.Hour, 10)
	if removed != 0 {
		t.Fatalf("expected no sweep below maxTracked, removed=%d", removed)
	}
}
