package stores

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitsch/aggregator/internal/model"
)

func storefrontSearchHTML(cards ...string) []byte {
	html := "<html><body><div class='SearchResults'>"
	for _, c := range cards {
		html += c
	}
	html += "</div></body></html>"
	return []byte(html)
}

func storefrontCard(sku, name, price, ppu string) string {
	return fmt.Sprintf(`<div class="ColListing-x1y">
		<a class="ProductCardHiddenLink-abc" href="/product/%s-id"></a>
		<img class="ProductCardImage-def" src="https://img.example/%s.jpg"/>
		<span data-testid="%s-ProductNameTestId">%s</span>
		<span class="ProductCardPrice-ghi">%s</span>
		<span class="ProductCardPriceInfo-jkl">%s</span>
	</div>`, sku, sku, sku, name, price, ppu)
}

func TestStorefrontParseSearchResponse(t *testing.T) {
	sv := NewSuperValu()
	body := storefrontSearchHTML(
		storefrontCard("1018033000", "Batchelors Chick Peas 225g", "€1.00", "€4.44/kg"),
		storefrontCard("1020990001", "Chickpea Flour 1kg", "€3.50", "€3.50/kg"),
	)

	list := sv.ParseSearchResponse(body, 10)
	require.Len(t, list.Entries, 2)
	assert.Equal(t, 10, list.Depth)

	first := list.Entries[0].Product
	assert.Equal(t, "Batchelors Chick Peas 225g", first.Name)
	assert.Equal(t, "SV1018033000", first.ID)
	assert.Equal(t, model.Price{Currency: model.EUR, Value: 100}, first.ItemPrice)
	assert.Equal(t, model.PricePU{
		Price: model.Price{Currency: model.EUR, Value: 444},
		Unit:  model.UnitKilogrammes,
	}, first.PricePerUnit)
	assert.Equal(t, model.StoreSuperValu, first.Store)
	assert.Equal(t, "https://shop.supervalu.ie/product/1018033000-id", first.URL)
	assert.Equal(t, "https://img.example/1018033000.jpg", first.ImageURL)
	assert.False(t, first.FullInfo)
	assert.NotZero(t, first.Timestamp)

	assert.Equal(t, 0, list.Entries[0].Info.Relevance)
	assert.Equal(t, 1, list.Entries[1].Info.Relevance)
}

func TestStorefrontDepthCapsResults(t *testing.T) {
	sv := NewSuperValu()
	cards := make([]string, 5)
	for i := range cards {
		cards[i] = storefrontCard(fmt.Sprintf("10%d", i), fmt.Sprintf("Item %d", i), "€1.00", "€1.00 each")
	}

	list := sv.ParseSearchResponse(storefrontSearchHTML(cards...), 3)
	assert.Len(t, list.Entries, 3)

	list = sv.ParseSearchResponse(storefrontSearchHTML(cards...), model.DepthIndefinite)
	assert.Len(t, list.Entries, 5)
}

func TestStorefrontSkipsMalformedCards(t *testing.T) {
	sv := NewSuperValu()
	malformed := `<div class="ColListing-x1y"><span class="ProductCardPrice-ghi">€1.00</span></div>`
	good := storefrontCard("555", "Good Item", "€2.00", "€2.00 each")

	list := sv.ParseSearchResponse(storefrontSearchHTML(malformed, good), 10)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "SV555", list.Entries[0].Product.ID)
}

func TestStorefrontPPUFallsBackToItemPrice(t *testing.T) {
	sv := NewSuperValu()
	card := storefrontCard("777", "No Unit Item", "€2.50", "mystery text")

	list := sv.ParseSearchResponse(storefrontSearchHTML(card), 10)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, model.PricePU{
		Price: model.Price{Currency: model.EUR, Value: 250},
		Unit:  model.UnitPiece,
	}, list.Entries[0].Product.PricePerUnit)
}

func TestStorefrontParseProductPage(t *testing.T) {
	sv := NewSuperValu()
	page := []byte(`<html><head>
		<meta itemprop="name" content="Batchelors Chick Peas 225g"/>
		<meta itemprop="description" content="Tinned chick peas"/>
		<meta itemprop="image" href="https://img.example/peas.jpg"/>
		<meta itemprop="sku" content="1018033000"/>
		<meta itemprop="price" content="1.00"/>
	</head><body>
		<span class="PdpUnitPrice-xyz">€4.44/kg</span>
	</body></html>`)

	product, ok := sv.ParseProductPage(page)
	require.True(t, ok)
	assert.Equal(t, "SV1018033000", product.ID)
	assert.Equal(t, "Batchelors Chick Peas 225g", product.Name)
	assert.Equal(t, "Tinned chick peas", product.Description)
	assert.Equal(t, "https://img.example/peas.jpg", product.ImageURL)
	assert.Equal(t, model.Price{Currency: model.EUR, Value: 100}, product.ItemPrice)
	assert.Equal(t, model.UnitKilogrammes, product.PricePerUnit.Unit)
	assert.True(t, product.FullInfo)
}

func TestStorefrontParseProductPageMissingSKU(t *testing.T) {
	sv := NewSuperValu()
	page := []byte(`<html><head><meta itemprop="name" content="Nameless"/></head><body></body></html>`)

	_, ok := sv.ParseProductPage(page)
	assert.False(t, ok)
}

func TestStorefrontOffers(t *testing.T) {
	sv := NewSuperValu()
	card := fmt.Sprintf(`<div class="ColListing-x1y">
		<a class="ProductCardHiddenLink-abc" href="/product/888-id"></a>
		<span data-testid="888-ProductNameTestId">Offer Item</span>
		<span class="ProductCardPrice-ghi">€3.00</span>
		<span class="ProductCardPriceInfo-jkl">€3.00 each</span>
		<span class="ProductCardOffer-mno">%s</span>
	</div>`, "2 for €5")

	list := sv.ParseSearchResponse(storefrontSearchHTML(card), 10)
	require.Len(t, list.Entries, 1)
	offers := list.Entries[0].Product.Offers
	require.Len(t, offers, 1)
	assert.Equal(t, model.OfferMultipleForReduced, offers[0].Kind)
	assert.Equal(t, 2, offers[0].BulkAmount)
}

func TestSearchURLEscapesQuery(t *testing.T) {
	sv := NewSuperValu()
	assert.Equal(t,
		"https://shop.supervalu.ie/sm/delivery/rsid/5550/results?q=chick+peas&skip=0",
		sv.SearchURL("chick peas"))
}
