package history

import (
	"testing"
	"time"
)

func TestStore_LazyCreateAndReuse(t *testing.T) {
	s := NewStore(time.Hour)
	a := s.For("binance", "BTC-USDT")
	b := s.For("binance", "BTC-USDT")
	if a != b {
		t.Fatal("expected same history instance for repeated lookup")
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 tracked history, got %d", s.Count())
	}
}

func TestStore_KeysIndependent(t *testing.T) {
	s := NewStore(time.Hour)
	a := s.For("binance", "BTC-USDT")
	b := s.For("kraken", "BTC-USDT")
	if a == b {
		t.Fatal("expected distinct histories per venue")
	}
}
