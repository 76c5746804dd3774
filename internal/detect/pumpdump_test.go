package detect

import (
	"testing"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/history"
)

func pumpDumpCfg() config.PumpDumpConfig {
	return config.DefaultThresholds().PumpDump
}

func TestPumpDump_FiresOnPump(t *testing.T) {
	d := NewPumpDumpDetector()
	cfg := pumpDumpCfg()
	h := history.NewHistory(cfg.Window)
	now := time.Now()

	h.Insert(now.Add(-30*time.Second), 100, 1)
	h.Insert(now, 110, 1) // +10% over window min, above the 5% default threshold

	sig := d.Evaluate(cfg, "binance", "BTC-USDT", 110, h, now)
	if sig == nil || sig.Kind != KindPump {
		t.Fatalf("expected pump signal, got %+v", sig)
	}
}

func TestPumpDump_FiresOnDump(t *testing.T) {
	d := NewPumpDumpDetector()
	cfg := pumpDumpCfg()
	h := history.NewHistory(cfg.Window)
	now := time.Now()

	h.Insert(now.Add(-30*time.Second), 100, 1)
	h.Insert(now, 90, 1) // -10% from window max

	sig := d.Evaluate(cfg, "binance", "BTC-USDT", 90, h, now)
	if sig == nil || sig.Kind != KindDump {
		t.Fatalf("expected dump signal, got %+v", sig)
	}
}

func TestPumpDump_CooldownSuppressesRepeat(t *testing.T) {
	d := NewPumpDumpDetector()
	cfg := pumpDumpCfg()
	h := history.NewHistory(cfg.Window)
	now := time.Now()
	h.Insert(now.Add(-30*time.Second), 100, 1)
	h.Insert(now, 110, 1)

	if sig := d.Evaluate(cfg, "binance", "BTC-USDT", 110, h, now); sig == nil {
		t.Fatal("expected first pump to fire")
	}
	if sig := d.Evaluate(cfg, "binance", "BTC-USDT", 110, h, now.Add(time.Second)); sig != nil {
		t.Fatal("expected repeat pump within cooldown to be suppressed")
	}
}

func TestPumpDump_BelowThresholdNoSignal(t *testing.T) {
	d := NewPumpDumpDetector()
	cfg := pumpDumpCfg()
	h := history.NewHistory(cfg.Window)
	now := time.Now()
	h.Insert(now.Add(-30*time.Second), 100, 1)
	h.Insert(now, 101, 1)

	if sig := d.Evaluate(cfg, "binance", "BTC-USDT", 101, h, now); sig != nil {
		t.Fatalf("expected no signal below threshold, got %+v", sig)
	}
}
