package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Currency identifies the currency a Price is denominated in. All monetary
// values in the system share one currency; comparisons across currencies are
// unordered.
type Currency int

const (
	EUR Currency = iota
)

// Symbol returns the textual prefix used when emitting prices.
func (c Currency) Symbol() string {
	switch c {
	case EUR:
		return "€"
	}
	return "?"
}

// Price is a monetary value in whole minor units (euro cents).
type Price struct {
	Currency Currency
	Value    int64
}

// String emits the price with two-decimal precision and a currency prefix,
// e.g. "€12.34".
func (p Price) String() string {
	return fmt.Sprintf("%s%d.%02d", p.Currency.Symbol(), p.Value/100, p.Value%100)
}

// ParsePrice parses strings of the form "[€]<int>[.<frac>]", tolerating a ','
// thousands separator. Returns false for anything else.
func ParsePrice(s string) (Price, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	p := Price{Currency: EUR}
	for _, c := range []Currency{EUR} {
		if strings.HasPrefix(cleaned, c.Symbol()) {
			p.Currency = c
			cleaned = strings.TrimPrefix(cleaned, c.Symbol())
			break
		}
	}

	if cleaned == "" {
		return Price{}, false
	}

	whole := cleaned
	frac := ""
	if i := strings.IndexByte(cleaned, '.'); i >= 0 {
		whole, frac = cleaned[:i], cleaned[i+1:]
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		log.Warn().Str("input", s).Msg("Failed to parse price")
		return Price{}, false
	}
	p.Value = units * 100

	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		cents, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || cents < 0 {
			log.Warn().Str("input", s).Msg("Failed to parse price fraction")
			return Price{}, false
		}
		if len(frac) == 1 {
			cents *= 10
		}
		p.Value += cents
	}

	return p, true
}

// Mul scales the price by a non-negative factor, truncating to whole cents.
func (p Price) Mul(f float64) Price {
	return Price{Currency: p.Currency, Value: int64(float64(p.Value) * f)}
}

// Compare returns the ordering of two prices. The second return value is
// false when the prices are denominated in different currencies, in which
// case no ordering is defined.
func (p Price) Compare(other Price) (int, bool) {
	if p.Currency != other.Currency {
		return 0, false
	}
	switch {
	case p.Value < other.Value:
		return -1, true
	case p.Value > other.Value:
		return 1, true
	}
	return 0, true
}

// MarshalJSON encodes the price as a two-element array [currency, value].
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{int64(p.Currency), p.Value})
}

// UnmarshalJSON decodes the [currency, value] array form.
func (p *Price) UnmarshalJSON(data []byte) error {
	var tuple [2]int64
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	p.Currency = Currency(tuple[0])
	p.Value = tuple[1]
	return nil
}

// MarshalBSONValue stores the price in its wire form, a [currency, value]
// array, so documents read back by other consumers match the JSON contract.
func (p Price) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(bson.A{int64(p.Currency), p.Value})
}

// UnmarshalBSONValue decodes the [currency, value] array form.
func (p *Price) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	var arr bson.A
	if err := raw.Unmarshal(&arr); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	if len(arr) != 2 {
		return fmt.Errorf("price: expected 2 elements, got %d", len(arr))
	}
	p.Currency = Currency(asInt64(arr[0]))
	p.Value = asInt64(arr[1])
	return nil
}

// asInt64 widens the numeric types the BSON decoder may hand back.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}
