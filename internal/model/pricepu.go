package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// PricePU is a price expressed per unit of measure: "€2.50/kg".
type PricePU struct {
	Price Price
	Unit  Unit
}

// pricePUSeparators are tried longest first when splitting a price-per-unit
// string into its price and unit parts.
var pricePUSeparators = []string{" per ", "/", " "}

// String emits the per-unit price with the unit's fixed suffix.
func (p PricePU) String() string {
	return p.Price.String() + p.Unit.Suffix()
}

// ParsePricePU parses forms like "€2.50/kg", "€1.20 per l", "€0.85 each" and
// "€3.10m". The unit is case-folded and looked up in the conversion table,
// which also rescales the price to the canonical unit (e.g. a price per 75cl
// becomes a price per litre). Returns false for unrecognised units.
func ParsePricePU(s string) (PricePU, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return PricePU{}, false
	}

	for _, sep := range pricePUSeparators {
		i := strings.Index(trimmed, sep)
		if i < 0 {
			continue
		}
		priceText := trimmed[:i]
		unitText := strings.ToLower(strings.TrimSpace(trimmed[i+len(sep):]))

		conv, ok := unitConversions[unitText]
		if !ok {
			log.Warn().Str("input", s).Str("unit", unitText).
				Msg("Unrecognised unit in price per unit")
			return PricePU{}, false
		}

		price, ok := ParsePrice(priceText)
		if !ok {
			return PricePU{}, false
		}
		return PricePU{Price: convert(price, conv.factor), Unit: conv.unit}, true
	}

	// No separator: some retailers (and our own Metres suffix) attach the
	// unit directly, e.g. "€3.10m".
	lower := strings.ToLower(trimmed)
	for _, key := range []string{"m²", "sqm", "each", "100ml", "100g", "75cl", "70cl", "ltr", "ml", "cl", "kg", "g", "l", "m"} {
		if !strings.HasSuffix(lower, key) {
			continue
		}
		price, ok := ParsePrice(trimmed[:len(trimmed)-len(key)])
		if !ok {
			continue
		}
		conv := unitConversions[key]
		return PricePU{Price: convert(price, conv.factor), Unit: conv.unit}, true
	}

	log.Warn().Str("input", s).Msg("Unrecognised delimiter or unit in price per unit")
	return PricePU{}, false
}

// convert rescales a price to the canonical unit, rounding to the nearest
// cent so factors like 1/0.75 land on exact values.
func convert(p Price, factor float64) Price {
	return Price{Currency: p.Currency, Value: int64(math.Round(float64(p.Value) * factor))}
}

// Compare orders two per-unit prices. Prices in different units are
// unordered and the second return value is false.
func (p PricePU) Compare(other PricePU) (int, bool) {
	if p.Unit != other.Unit {
		return 0, false
	}
	return p.Price.Compare(other.Price)
}

// MarshalJSON encodes as [unit, [currency, value]].
func (p PricePU) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{int(p.Unit), p.Price})
}

// UnmarshalJSON decodes the [unit, [currency, value]] form.
func (p *PricePU) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("price per unit: %w", err)
	}
	var unit int
	if err := json.Unmarshal(tuple[0], &unit); err != nil {
		return fmt.Errorf("price per unit: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &p.Price); err != nil {
		return err
	}
	p.Unit = Unit(unit)
	return nil
}

// MarshalBSONValue mirrors the JSON tuple form for stored documents.
func (p PricePU) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(bson.A{int64(p.Unit), bson.A{int64(p.Price.Currency), p.Price.Value}})
}

// UnmarshalBSONValue decodes the [unit, [currency, value]] form.
func (p *PricePU) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	var arr bson.A
	if err := raw.Unmarshal(&arr); err != nil {
		return fmt.Errorf("price per unit: %w", err)
	}
	if len(arr) != 2 {
		return fmt.Errorf("price per unit: expected 2 elements, got %d", len(arr))
	}
	p.Unit = Unit(asInt64(arr[0]))
	inner, ok := arr[1].(bson.A)
	if !ok || len(inner) != 2 {
		return fmt.Errorf("price per unit: malformed price tuple")
	}
	p.Price = Price{Currency: Currency(asInt64(inner[0])), Value: asInt64(inner[1])}
	return nil
}
