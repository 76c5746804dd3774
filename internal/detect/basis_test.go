package detect

import (
	"testing"
	"time"

	"github.com/cryptosurveil/surveil/internal/config"
)

func basisCfg() config.BasisConfig {
	return config.DefaultThresholds().Basis
}

func TestBasis_FiresWhenBothFreshAndOverThreshold(t *testing.T) {
	d := NewBasisDetector()
	cfg := basisCfg()
	now := time.Now()

	d.ObserveSpot("BTC-USDT", 100, now)
	sig := d.ObservePerp(cfg, "BTC-USDT", 101.5, now) // basis = 1.5%, above 1% alert threshold
	if sig == nil {
		t.Fatal("expected basis signal")
	}
	if sig.Direction != "perp-premium" {
		t.Fatalf("expected perp-premium direction, got %s", sig.Direction)
	}
	if sig.Severity != SeverityMedium {
		t.Fatalf("expected medium severity below high threshold, got %v", sig.Severity)
	}
}

func TestBasis_HighSeverityAboveHighThreshold(t *testing.T) {
	d := NewBasisDetector()
	cfg := basisCfg()
	now := time.Now()

	d.ObserveSpot("BTC-USDT", 100, now)
	sig := d.ObservePerp(cfg, "BTC-USDT", 97, now) // basis = -3%, beyond 2% high threshold
	if sig == nil || sig.Severity != SeverityHigh {
		t.Fatalf("expected high severity, got %+v", sig)
	}
	if sig.Direction != "perp-discount" {
		t.Fatalf("expected perp-discount direction, got %s", sig.Direction)
	}
}

func TestBasis_StaleObservationSuppressed(t *testing.T) {
	d := NewBasisDetector()
	cfg := basisCfg()
	now := time.Now()

	d.ObserveSpot("BTC-USDT", 100, now.Add(-90*time.Second))
	sig := d.ObservePerp(cfg, "BTC-USDT", 105, now)
	if sig != nil {
		t.Fatal("expected stale spot observation to suppress the signal")
	}
}

func TestBasis_CooldownSuppressesRepeat(t *testing.T) {
	d := NewBasisDetector()
	cfg := basisCfg()
	now := time.Now()

	d.ObserveSpot("BTC-USDT", 100, now)
	if sig := d.ObservePerp(cfg, "BTC-USDT", 102, now); sig == nil {
		t.Fatal("expected first basis alert to fire")
	}

	d.ObserveSpot("BTC-USDT", 100, now.Add(time.Second))
	if sig := d.ObservePerp(cfg, "BTC-USDT", 102, now.Add(time.Second)); sig != nil {
		t.Fatal("expected repeat basis alert within cooldown to be suppressed")
	}
}
