package stores

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitsch/aggregator/internal/model"
)

const aldiSearchBody = `{
	"data": [
		{
			"sku": "4088600123456",
			"name": "Specially Selected Sourdough",
			"urlSlugText": "specially-selected-sourdough-4088600123456",
			"price": { "amount": 249 },
			"pricePerUnit": { "display": "€4.98 per kg", "amount": 498 },
			"assets": [ { "url": "https://cdn.aldi.example/sourdough.jpg" } ],
			"discount": { "text": "Save €0.50" }
		},
		{
			"sku": "4088600654321",
			"name": "Irish Butter",
			"urlSlugText": "irish-butter-4088600654321",
			"price": { "amount": 319 },
			"pricePerUnit": { "display": "€14.17/kg", "amount": 1417 },
			"assets": []
		},
		{
			"sku": "",
			"name": "Broken Record",
			"price": { "amount": 100 }
		}
	]
}`

func TestAldiParseSearchResponse(t *testing.T) {
	a := NewAldi()
	list := a.ParseSearchResponse([]byte(aldiSearchBody), 10)

	require.Len(t, list.Entries, 2, "record without sku is skipped")

	first := list.Entries[0].Product
	assert.Equal(t, "AL4088600123456", first.ID)
	assert.Equal(t, "Specially Selected Sourdough", first.Name)
	assert.Equal(t, model.Price{Currency: model.EUR, Value: 249}, first.ItemPrice)
	assert.Equal(t, model.StoreAldi, first.Store)
	assert.Equal(t, "https://groceries.aldi.ie/product/specially-selected-sourdough-4088600123456", first.URL)
	assert.Equal(t, "https://cdn.aldi.example/sourdough.jpg", first.ImageURL)

	// Unit comes from the display string, the amount from the cent field.
	assert.Equal(t, model.PricePU{
		Price: model.Price{Currency: model.EUR, Value: 498},
		Unit:  model.UnitKilogrammes,
	}, first.PricePerUnit)

	require.Len(t, first.Offers, 1)
	assert.Equal(t, model.OfferReducedPriceDeduction, first.Offers[0].Kind)
}

func TestAldiParseSearchResponseDepth(t *testing.T) {
	a := NewAldi()
	list := a.ParseSearchResponse([]byte(aldiSearchBody), 1)
	assert.Len(t, list.Entries, 1)
}

func TestAldiParseSearchResponseGarbage(t *testing.T) {
	a := NewAldi()
	list := a.ParseSearchResponse([]byte("<html>not json</html>"), 10)
	assert.Empty(t, list.Entries)
}

func TestAldiPPUFallsBackToItemPrice(t *testing.T) {
	a := NewAldi()
	body := `{"data":[{"sku":"1","name":"No PPU","price":{"amount":100},"pricePerUnit":{"display":"","amount":0}}]}`

	list := a.ParseSearchResponse([]byte(body), 10)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, model.PricePU{
		Price: model.Price{Currency: model.EUR, Value: 100},
		Unit:  model.UnitPiece,
	}, list.Entries[0].Product.PricePerUnit)
}

func TestAldiParseProductPage(t *testing.T) {
	a := NewAldi()
	body := `{"data":{
		"sku": "4088600123456",
		"name": "Specially Selected Sourdough",
		"description": "Stone-baked sourdough loaf",
		"price": { "amount": 249 },
		"pricePerUnit": { "display": "€4.98 per kg", "amount": 498 }
	}}`

	product, ok := a.ParseProductPage([]byte(body))
	require.True(t, ok)
	assert.True(t, product.FullInfo)
	assert.Equal(t, "Stone-baked sourdough loaf", product.Description)
	assert.Equal(t, "AL4088600123456", product.ID)
}

func TestAldiRequestOptions(t *testing.T) {
	a := NewAldi()
	opts := a.SearchRequestOptions("milk")
	assert.Equal(t, "json-api", opts.Headers.Name())
	assert.Contains(t, a.SearchURL("irish butter"), "q=irish+butter")
}
