package model

import (
	"fmt"
	"strings"
)

// Symbol is a canonical "BASE/QUOTE" trading pair, uppercase. Adapters
// translate it to venue-native form (BTCUSDT, BTC-USDT, XBT/USD, ...).
type Symbol string

// ParseSymbol normalizes user input into canonical form. Mixed case and
// surrounding whitespace are accepted; a missing quote side is rejected.
func ParseSymbol(s string) (Symbol, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	parts := strings.Split(raw, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid symbol %q: want BASE/QUOTE", s)
	}
	return Symbol(parts[0] + "/" + parts[1]), nil
}

// ParseSymbols splits a comma-separated list into canonical symbols.
func ParseSymbols(csv string) ([]Symbol, error) {
	var out []Symbol
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		sym, err := ParseSymbol(part)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, nil
}

// Base returns the base asset ("BTC" for "BTC/USDT").
func (s Symbol) Base() string {
	if i := strings.IndexByte(string(s), '/'); i >= 0 {
		return string(s)[:i]
	}
	return string(s)
}

// Quote returns the quote asset ("USDT" for "BTC/USDT").
func (s Symbol) Quote() string {
	if i := strings.IndexByte(string(s), '/'); i >= 0 {
		return string(s)[i+1:]
	}
	return ""
}

// Join renders the pair with a venue-specific separator: Join("") yields
// "BTCUSDT", Join("-") yields "BTC-USDT".
func (s Symbol) Join(sep string) string {
	return s.Base() + sep + s.Quote()
}

func (s Symbol) String() string { return string(s) }
