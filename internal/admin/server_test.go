package admin

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/cryptosurveil/surveil/internal/venue"
	"github.com/rs/zerolog"
)

func testRegistry() *venue.Registry {
	r := venue.NewRegistry([]string{"USDT", "USDC"}, true)
	r.Register(&venue.Venue{
		Name:           "binance",
		StreamEndpoint: "wss://stream.binance.com",
		RESTEndpoint:   "https://api.binance.com",
		MarketTypes:    []venue.MarketType{venue.Spot},
		Adapter:        venue.NewGenericAdapter("", nil, ""),
	})
	r.UpdateVolumeRanking("binance", venue.Spot, []venue.RankedSymbol{
		{Symbol: venue.CanonicalSymbol{Base: "BTC", Quote: "USDT"}, Market: venue.Spot, QuoteVolume24h: 1000000},
	})
	return r
}

func TestHandleVenues_ReturnsRegisteredVenues(t *testing.T) {
	s := NewServer("127.0.0.1", 0, testRegistry(), nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/venues", nil)
	s.Router().ServeHTTP(rec, req)

	var out []venueView
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Name != "binance" {
		t.Fatalf("unexpected venues: %+v", out)
	}
}

func TestHandleSymbols_ReturnsRankedSymbolsFilteredByVenue(t *testing.T) {
	s := NewServer("127.0.0.1", 0, testRegistry(), nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/symbols?venue=binance", nil)
	s.Router().ServeHTTP(rec, req)

	var out []symbolView
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Symbol != "BTC-USDT" {
		t.Fatalf("unexpected symbols: %+v", out)
	}

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("GET", "/admin/symbols?venue=kraken", nil)
	s.Router().ServeHTTP(rec2, req2)
	var out2 []symbolView
	_ = json.Unmarshal(rec2.Body.Bytes(), &out2)
	if len(out2) != 0 {
		t.Fatalf("expected no symbols for unregistered venue, got %+v", out2)
	}
}

func TestHandleConfig_NilHotReturnsEmptyObject(t *testing.T) {
	s := NewServer("127.0.0.1", 0, testRegistry(), nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/config", nil)
	s.Router().ServeHTTP(rec, req)

	if rec.Body.String() == "" {
		t.Fatal("expected a JSON body")
	}
}
