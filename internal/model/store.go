package model

import "math/bits"

// StoreID identifies a retailer. Values are single bits so that a set of
// retailers fits in a StoreSelection.
type StoreID uint64

const (
	StoreSuperValu StoreID = 1 << iota
	StoreLidl
	StoreTesco
	StoreAldi
	StoreDunnes
)

// AllStoreIDs lists every defined retailer in bit-ascending order.
var AllStoreIDs = []StoreID{
	StoreSuperValu,
	StoreLidl,
	StoreTesco,
	StoreAldi,
	StoreDunnes,
}

func (id StoreID) String() string {
	switch id {
	case StoreSuperValu:
		return "SuperValu"
	case StoreLidl:
		return "Lidl"
	case StoreTesco:
		return "Tesco"
	case StoreAldi:
		return "Aldi"
	case StoreDunnes:
		return "Dunnes Stores"
	}
	return "unknown"
}

// StoreSelection is a set of retailers represented as a bit-field over
// StoreID values. It is encoded in JSON and BSON as the underlying integer.
type StoreSelection uint64

// Selection builds a StoreSelection from individual ids.
func Selection(ids ...StoreID) StoreSelection {
	var s StoreSelection
	for _, id := range ids {
		s |= StoreSelection(id)
	}
	return s
}

func (s StoreSelection) Has(id StoreID) bool {
	return s&StoreSelection(id) != 0
}

// HasAll reports whether every member of other is in s.
func (s StoreSelection) HasAll(other StoreSelection) bool {
	return s&other == other
}

func (s StoreSelection) Union(other StoreSelection) StoreSelection {
	return s | other
}

func (s StoreSelection) Intersect(other StoreSelection) StoreSelection {
	return s & other
}

// Without returns the set-difference s \ other.
func (s StoreSelection) Without(other StoreSelection) StoreSelection {
	return s &^ other
}

func (s StoreSelection) Toggle(id StoreID) StoreSelection {
	return s ^ StoreSelection(id)
}

func (s StoreSelection) Add(id StoreID) StoreSelection {
	return s | StoreSelection(id)
}

func (s StoreSelection) Empty() bool {
	return s == 0
}

func (s StoreSelection) Count() int {
	return bits.OnesCount64(uint64(s))
}

// IDs returns the member StoreIDs in bit-ascending order.
func (s StoreSelection) IDs() []StoreID {
	ids := make([]StoreID, 0, s.Count())
	for v := uint64(s); v != 0; v &= v - 1 {
		ids = append(ids, StoreID(1)<<uint(bits.TrailingZeros64(v)))
	}
	return ids
}
