package venue

import "testing"

func testVenue(name string) *Venue {
	return &Venue{
		Name:        name,
		MarketTypes: []MarketType{Spot, Perp},
		Adapter:     NewGenericAdapter("", defaultQuoteAssets, "-PERP"),
	}
}

func TestRegistry_ToWireFromWire(t *testing.T) {
	r := NewRegistry([]string{"USD", "USDT", "USDC"}, true)
	r.Register(testVenue("binance"))

	sym := CanonicalSymbol{Base: "BTC", Quote: "USD"}
	wire, ok := r.ToWire("binance", sym, Spot)
	if !ok {
		t.Fatal("expected venue to be found")
	}

	got, err := r.FromWire("binance", wire, Spot)
	if err != nil {
		t.Fatal(err)
	}
	if got != sym {
		t.Fatalf("round trip mismatch: %+v != %+v", got, sym)
	}
}

func TestRegistry_UnknownVenue(t *testing.T) {
	r := NewRegistry(nil, false)
	if _, ok := r.ToWire("nope", CanonicalSymbol{Base: "BTC", Quote: "USD"}, Spot); ok {
		t.Fatal("expected unknown venue to fail")
	}
	if _, err := r.FromWire("nope", "BTCUSD", Spot); err == nil {
		t.Fatal("expected error for unknown venue")
	}
}

func TestRegistry_ListSymbolsRankedByVolume(t *testing.T) {
	r := NewRegistry(nil, false)
	r.Register(testVenue("binance"))

	r.UpdateVolumeRanking("binance", Spot, []RankedSymbol{
		{Symbol: CanonicalSymbol{Base: "ETH", Quote: "USDT"}, Market: Spot, QuoteVolume24h: 500},
		{Symbol: CanonicalSymbol{Base: "BTC", Quote: "USDT"}, Market: Spot, QuoteVolume24h: 1000},
		{Symbol: CanonicalSymbol{Base: "SOL", Quote: "USDT"}, Market: Spot, QuoteVolume24h: 50},
	})

	ranked := r.ListSymbols("binance", Spot)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(ranked))
	}
	if ranked[0].Symbol.Base != "BTC" || ranked[1].Symbol.Base != "ETH" || ranked[2].Symbol.Base != "SOL" {
		t.Fatalf("unexpected ranking order: %+v", ranked)
	}

	// ListSymbols must return a copy: mutating it must not affect the registry.
	ranked[0].QuoteVolume24h = -1
	fresh := r.ListSymbols("binance", Spot)
	if fresh[0].QuoteVolume24h != 1000 {
		t.Fatal("ListSymbols leaked internal slice to caller mutation")
	}
}

func TestRegistry_ListSymbolsUnknownVenue(t *testing.T) {
	r := NewRegistry(nil, false)
	if got := r.ListSymbols("nope", Spot); got != nil {
		t.Fatalf("expected nil for unknown venue, got %+v", got)
	}
}
