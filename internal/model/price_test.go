package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Price
		ok    bool
	}{
		{"Simple", "€12.34", Price{EUR, 1234}, true},
		{"Thousands separator", "€1,234.50", Price{EUR, 123450}, true},
		{"No currency symbol", "12.34", Price{EUR, 1234}, true},
		{"Whole euros", "€5", Price{EUR, 500}, true},
		{"Single decimal digit", "€2.5", Price{EUR, 250}, true},
		{"Zero", "€0.00", Price{EUR, 0}, true},
		{"Leading whitespace", " €3.20", Price{EUR, 320}, true},
		{"Empty", "", Price{}, false},
		{"Garbage", "free!", Price{}, false},
		{"Symbol only", "€", Price{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPriceString(t *testing.T) {
	tests := []struct {
		price Price
		want  string
	}{
		{Price{EUR, 1234}, "€12.34"},
		{Price{EUR, 123450}, "€1234.50"},
		{Price{EUR, 5}, "€0.05"},
		{Price{EUR, 0}, "€0.00"},
		{Price{EUR, 100}, "€1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.price.String())
		})
	}
}

func TestPriceRoundTrip(t *testing.T) {
	for _, value := range []int64{0, 1, 99, 100, 250, 1234, 99999, 9999999} {
		p := Price{EUR, value}
		got, ok := ParsePrice(p.String())
		require.True(t, ok, "value %d", value)
		assert.Equal(t, p, got)
	}
}

func TestPriceMul(t *testing.T) {
	tests := []struct {
		name   string
		price  Price
		factor float64
		want   int64
	}{
		{"Identity", Price{EUR, 250}, 1, 250},
		{"Double", Price{EUR, 250}, 2, 500},
		{"Half, rounding down", Price{EUR, 999}, 0.5, 499},
		{"Truncates", Price{EUR, 100}, 1.0 / 3, 33},
		{"Zero factor", Price{EUR, 999}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.price.Mul(tt.factor).Value)
		})
	}
}

func TestPriceCompare(t *testing.T) {
	a := Price{EUR, 100}
	b := Price{EUR, 200}

	cmp, ok := a.Compare(b)
	require.True(t, ok)
	assert.Negative(t, cmp)

	cmp, ok = b.Compare(a)
	require.True(t, ok)
	assert.Positive(t, cmp)

	cmp, ok = a.Compare(Price{EUR, 100})
	require.True(t, ok)
	assert.Zero(t, cmp)
}

func TestPriceJSON(t *testing.T) {
	data, err := json.Marshal(Price{EUR, 1234})
	require.NoError(t, err)
	assert.JSONEq(t, `[0, 1234]`, string(data))

	var p Price
	require.NoError(t, json.Unmarshal([]byte(`[0, 250]`), &p))
	assert.Equal(t, Price{EUR, 250}, p)
}
