package depth

import "testing"

func TestStore_LazyCreateAndReuse(t *testing.T) {
	s := NewStore(FullSnapshotMode, nil)
	a := s.Ladder("binance", "BTC-USDT")
	b := s.Ladder("binance", "BTC-USDT")
	if a != b {
		t.Fatal("expected same ladder instance for repeated lookup")
	}
	if s.Symbols() != 1 {
		t.Fatalf("expected 1 tracked symbol, got %d", s.Symbols())
	}
}

func TestStore_VenuesIndependent(t *testing.T) {
	s := NewStore(FullSnapshotMode, nil)
	a := s.Ladder("binance", "BTC-USDT")
	b := s.Ladder("kraken", "BTC-USDT")
	if a == b {
		t.Fatal("expected distinct ladders per venue for the same symbol")
	}
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(FullSnapshotMode, nil)
	first := s.Ladder("binance", "BTC-USDT")
	first.ApplyFullSnapshot(Snapshot{Bids: []Level{{Price: 100, Size: 1}}})

	s.Reset("binance", "BTC-USDT")
	second := s.Ladder("binance", "BTC-USDT")
	if second == first {
		t.Fatal("expected Reset to drop the old ladder")
	}
	if _, ok := second.Best(Bid); ok {
		t.Fatal("expected fresh ladder after reset to be empty")
	}
}

func TestStore_ResetVenue(t *testing.T) {
	s := NewStore(FullSnapshotMode, nil)
	s.Ladder("binance", "BTC-USDT")
	s.Ladder("binance", "ETH-USDT")
	s.Ladder("kraken", "BTC-USDT")

	s.ResetVenue("binance")
	if s.Symbols() != 1 {
		t.Fatalf("expected only kraken's ladder to remain, got %d tracked", s.Symbols())
	}
}
