package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDepth(t *testing.T) {
	assert.Equal(t, DepthIndefinite, NormalizeDepth(0))
	assert.Equal(t, DepthIndefinite, NormalizeDepth(-7))
	assert.Equal(t, 10, NormalizeDepth(10))
}

func TestMinDepth(t *testing.T) {
	tests := []struct {
		name string
		a, b int
		want int
	}{
		{"Both finite", 5, 10, 5},
		{"Indefinite identity left", DepthIndefinite, 10, 10},
		{"Indefinite identity right", 10, DepthIndefinite, 10},
		{"Both indefinite", DepthIndefinite, DepthIndefinite, DepthIndefinite},
		{"Zero treated as indefinite", 0, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinDepth(tt.a, tt.b))
		})
	}
}

func TestDepthCovers(t *testing.T) {
	assert.True(t, DepthCovers(DepthIndefinite, 10))
	assert.True(t, DepthCovers(DepthIndefinite, DepthIndefinite))
	assert.True(t, DepthCovers(10, 10))
	assert.True(t, DepthCovers(20, 10))
	assert.False(t, DepthCovers(5, 10))
	assert.False(t, DepthCovers(5, DepthIndefinite))
	assert.True(t, DepthCovers(0, 10), "zero depth is indefinite")
}

func TestProductListAppendAssignsRelevance(t *testing.T) {
	list := NewProductList(5)
	list.Append(Product{ID: "SV1"})
	list.Append(Product{ID: "SV2"})
	list.Append(Product{ID: "SV3"})

	for i, e := range list.Entries {
		assert.Equal(t, i, e.Info.Relevance)
	}
}

func TestProductListAddFoldsDepth(t *testing.T) {
	a := NewProductList(5)
	a.Append(Product{ID: "SV1"})
	b := NewProductList(10)
	b.Append(Product{ID: "T1"})

	a.Add(b)
	assert.Equal(t, 5, a.Depth)
	assert.Len(t, a.Entries, 2)

	c := NewProductList(DepthIndefinite)
	c.Add(a)
	assert.Equal(t, 5, c.Depth, "indefinite is the identity")
}

func TestProductListAsQueryTemplate(t *testing.T) {
	list := NewProductList(10)
	list.Append(Product{ID: "SV1018033000"})
	list.Append(Product{ID: "T254986172"})

	sel := Selection(StoreSuperValu, StoreTesco)
	tmpl := list.AsQueryTemplate("chickpeas", sel)

	assert.Equal(t, "chickpeas", tmpl.QueryString)
	assert.Equal(t, sel, tmpl.Stores)
	assert.Equal(t, 10, tmpl.Depth)
	assert.NotZero(t, tmpl.Timestamp)

	require.Len(t, tmpl.Results, 2)
	assert.Equal(t, 0, tmpl.Results["SV1018033000"].Relevance)
	assert.Equal(t, 1, tmpl.Results["T254986172"].Relevance)
}

func TestProductListProducts(t *testing.T) {
	list := NewProductList(DepthIndefinite)
	list.Append(Product{ID: "LD1"})
	list.Append(Product{ID: "LD2"})

	products := list.Products()
	require.Len(t, products, 2)
	assert.Equal(t, "LD1", products[0].ID)
	assert.Equal(t, "LD2", products[1].ID)
}
