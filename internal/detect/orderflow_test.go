package detect

import (
	"testing"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
)

func orderFlowCfg() config.OrderFlowConfig {
	return config.DefaultThresholds().OrderFlow
}

func buyTrade(ts time.Time) Trade {
	return Trade{Venue: "binance", Symbol: "BTC-USDT", Market: "spot", Side: "buy", Price: 100, Size: 1, Ts: ts}
}

func TestOrderFlow_BelowMinTradeCountNeverFires(t *testing.T) {
	d := NewOrderFlowDetector()
	cfg := orderFlowCfg()
	start := time.Now()
	for i := 0; i < 9; i++ {
		if _, fired := d.Evaluate(cfg, buyTrade(start.Add(time.Duration(i)*5*time.Second))); fired {
			t.Fatal("expected no signal before min_trade_count recent trades accumulate")
		}
	}
}

func TestOrderFlow_RequiresConsecutiveMinutesBeforeFiring(t *testing.T) {
	d := NewOrderFlowDetector()
	cfg := orderFlowCfg()
	start := time.Now()

	var lastFired bool
	var lastSig *Signal
	for i := 0; i < 34; i++ {
		ts := start.Add(time.Duration(i) * 5 * time.Second)
		sig, fired := d.Evaluate(cfg, buyTrade(ts))
		if i < 33 {
			if fired {
				t.Fatalf("trade %d: expected buy pressure to stay below the consecutive-minutes gate, got %+v", i, sig)
			}
			continue
		}
		lastFired, lastSig = fired, sig
	}

	if !lastFired {
		t.Fatal("expected buy pressure sustained for 2 consecutive minutes to fire")
	}
	if lastSig.Kind != KindOrderFlow {
		t.Fatalf("unexpected kind: %v", lastSig.Kind)
	}
	if lastSig.CooldownSuppressed {
		t.Fatal("expected the first qualifying signal to fire uncooled")
	}
}

func TestOrderFlow_CooldownSuppressesRepeat(t *testing.T) {
	d := NewOrderFlowDetector()
	cfg := orderFlowCfg()
	start := time.Now()

	for i := 0; i < 34; i++ {
		d.Evaluate(cfg, buyTrade(start.Add(time.Duration(i)*5*time.Second)))
	}

	second, fired := d.Evaluate(cfg, buyTrade(start.Add(34*5*time.Second)))
	if !fired {
		t.Fatal("expected a cooldown-suppressed signal, not silence")
	}
	if !second.CooldownSuppressed {
		t.Fatal("expected the immediate repeat to be cooldown-suppressed")
	}
}
