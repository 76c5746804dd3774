package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestRegistry_RecordAlertIncrementsLabeledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.RecordAlert("high", "binance", "wbi")
	r.RecordAlert("high", "binance", "wbi")
	r.RecordAlert("medium", "binance", "wbi")

	if got := counterValue(t, r.AlertsTotal.WithLabelValues("high", "binance", "wbi")); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := counterValue(t, r.AlertsTotal.WithLabelValues("medium", "binance", "wbi")); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestRegistry_GaugesReflectLastSet(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.SetActiveConnections("binance", 3)
	r.SetActiveConnections("binance", 5)
	if got := gaugeValue(t, r.ActiveConns.WithLabelValues("binance")); got != 5 {
		t.Fatalf("expected last-set value 5, got %v", got)
	}

	r.SetOrderbookLevels("binance", "bid", 42)
	if got := gaugeValue(t, r.OrderbookLevels.WithLabelValues("binance", "bid")); got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestRegistry_SinkDropAndReconnectCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.RecordSinkDrop("telegram")
	r.RecordReconnect("binance-spot-0")
	r.RecordReconnect("binance-spot-0")

	if got := counterValue(t, r.SinkDrops.WithLabelValues("telegram")); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := counterValue(t, r.ShardReconnects.WithLabelValues("binance-spot-0")); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}
