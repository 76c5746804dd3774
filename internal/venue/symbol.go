// Package venue implements C4: canonical symbol normalization across
// venues, stable-coin equivalence, and per-venue wire-format adapters.
// Grounded on the teacher's internal/microstructure/adapters/* per-venue
// split, generalized from "microstructure adapter" to "symbol wire format".
package venue

import (
	"fmt"
	"strings"
)

// MarketType distinguishes spot from perpetual futures instruments.
type MarketType string

const (
	Spot MarketType = "spot"
	Perp MarketType = "perp"
)

// CanonicalSymbol is the (base, quote) primary key of §3.
type CanonicalSymbol struct {
	Base  string
	Quote string
}

// Display renders the canonical form, e.g. "BTC-USDT".
func (c CanonicalSymbol) Display() string {
	return c.Base + "-" + c.Quote
}

// defaultQuoteAssets is the greedy-longest-suffix candidate set used when a
// wire symbol lacks a separator (§4.4 edge case).
var defaultQuoteAssets = []string{
	"USDT", "USDC", "BUSD", "FDUSD", "TUSD", "USD", "EUR", "BTC", "ETH",
}

// Adapter translates between a venue's wire symbols and CanonicalSymbol.
type Adapter interface {
	ToWire(sym CanonicalSymbol, market MarketType) string
	FromWire(wire string, market MarketType) (CanonicalSymbol, error)
}

// GenericAdapter implements the common "BASEQUOTE" or "BASE-QUOTE" wire
// conventions used by most exchanges, parameterized by a separator (empty
// string for concatenated forms like Binance's "BTCUSDT").
type GenericAdapter struct {
	Separator   string
	QuoteAssets []string // ordered longest-first for greedy suffix match
	PerpSuffix  string    // e.g. "-PERP" or ".P", appended/stripped for Perp
}

// NewGenericAdapter builds an adapter with quote assets sorted so the
// longest (and therefore most specific) match wins the greedy suffix scan.
func NewGenericAdapter(separator string, quoteAssets []string, perpSuffix string) *GenericAdapter {
	assets := append([]string(nil), quoteAssets...)
	for i := 0; i < len(assets); i++ {
		for j := i + 1; j < len(assets); j++ {
			if len(assets[j]) > len(assets[i]) {
				assets[i], assets[j] = assets[j], assets[i]
			}
		}
	}
	return &GenericAdapter{Separator: separator, QuoteAssets: assets, PerpSuffix: perpSuffix}
}

func (g *GenericAdapter) ToWire(sym CanonicalSymbol, market MarketType) string {
	wire := strings.ToUpper(sym.Base) + g.Separator + strings.ToUpper(sym.Quote)
	if market == Perp && g.PerpSuffix != "" {
		wire += g.PerpSuffix
	}
	return wire
}

func (g *GenericAdapter) FromWire(wire string, market MarketType) (CanonicalSymbol, error) {
	w := strings.ToUpper(wire)
	if market == Perp && g.PerpSuffix != "" {
		w = strings.TrimSuffix(w, strings.ToUpper(g.PerpSuffix))
	}

	if g.Separator != "" && strings.Contains(w, g.Separator) {
		parts := strings.SplitN(w, g.Separator, 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return CanonicalSymbol{Base: parts[0], Quote: parts[1]}, nil
		}
	}

	// No separator: greedy longest-suffix match against known quote assets.
	for _, q := range g.QuoteAssets {
		if strings.HasSuffix(w, q) && len(w) > len(q) {
			base := strings.TrimSuffix(w, q)
			return CanonicalSymbol{Base: base, Quote: q}, nil
		}
	}

	return CanonicalSymbol{}, fmt.Errorf("venue: cannot split wire symbol %q into base/quote", wire)
}

// Normalize uppercases and splits an arbitrary free-form symbol string into
// canonical form, applying stablecoin substitution when convertStable is
// true and the parsed quote is in stableSet.
func Normalize(raw string, stableSet map[string]string, convertStable bool) CanonicalSymbol {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	sep := ""
	for _, candidate := range []string{"-", "_", "/"} {
		if strings.Contains(raw, candidate) {
			sep = candidate
			break
		}
	}

	var sym CanonicalSymbol
	if sep != "" {
		parts := strings.SplitN(raw, sep, 2)
		sym = CanonicalSymbol{Base: parts[0], Quote: parts[1]}
	} else {
		adapter := NewGenericAdapter("", defaultQuoteAssets, "")
		if parsed, err := adapter.FromWire(raw, Spot); err == nil {
			sym = parsed
		} else {
			sym = CanonicalSymbol{Base: raw}
		}
	}

	if convertStable {
		if canonical, ok := stableSet[sym.Quote]; ok {
			sym.Quote = canonical
		}
	}
	return sym
}
