package model

// Unit is the measure a per-unit price is expressed in.
type Unit int

const (
	UnitNone Unit = iota
	UnitPiece
	UnitKilogrammes
	UnitLitres
	UnitSqMetres
	UnitMetres
)

var unitSuffixes = [...]string{
	UnitNone:        "",
	UnitPiece:       " each",
	UnitKilogrammes: "/kg",
	UnitLitres:      "/l",
	UnitSqMetres:    "/m²",
	UnitMetres:      "m",
}

// Suffix returns the fixed textual suffix for the unit, e.g. "/kg".
func (u Unit) Suffix() string {
	if int(u) < 0 || int(u) >= len(unitSuffixes) {
		return ""
	}
	return unitSuffixes[u]
}

func (u Unit) String() string {
	switch u {
	case UnitPiece:
		return "piece"
	case UnitKilogrammes:
		return "kg"
	case UnitLitres:
		return "l"
	case UnitSqMetres:
		return "m²"
	case UnitMetres:
		return "m"
	}
	return "none"
}

type unitConversion struct {
	unit   Unit
	factor float64
}

// unitConversions maps retailer unit spellings to the canonical Unit and the
// factor that converts a price in the source unit to a price per canonical
// unit. Keys are matched case-folded.
var unitConversions = map[string]unitConversion{
	"kg":   {UnitKilogrammes, 1},
	"g":    {UnitKilogrammes, 1000},
	"100g": {UnitKilogrammes, 10},
	"l":    {UnitLitres, 1},
	"ltr":  {UnitLitres, 1},
	"ml":   {UnitLitres, 1000},
	"100ml": {UnitLitres, 10},
	"cl":   {UnitLitres, 100},
	"75cl": {UnitLitres, 1 / 0.75},
	"70cl": {UnitLitres, 1 / 0.7},
	"m²":   {UnitSqMetres, 1},
	"sqm":  {UnitSqMetres, 1},
	"m":    {UnitMetres, 1},
	"each": {UnitPiece, 1},
	"ea":   {UnitPiece, 1},
	"item": {UnitPiece, 1},
}
