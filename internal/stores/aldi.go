package stores

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fitsch/aggregator/internal/model"
	"github.com/fitsch/aggregator/internal/transfer"
)

// aldi talks to the ALDI grocery search API instead of scraping markup. The
// API reports the item price in cents and the per-unit price in two parts, a
// display string carrying the unit and a separate cent amount.
type aldi struct {
	apiBase  string
	shopBase string
}

// NewAldi returns the ALDI adapter.
func NewAldi() Adapter {
	return &aldi{
		apiBase:  "https://api.aldi.ie/v3",
		shopBase: "https://groceries.aldi.ie",
	}
}

func (a *aldi) ID() model.StoreID { return model.StoreAldi }
func (a *aldi) Name() string      { return "ALDI" }
func (a *aldi) Prefix() string    { return "AL" }

func (a *aldi) SearchURL(query string) string {
	return a.apiBase + "/product-search?currency=EUR&q=" + url.QueryEscape(query)
}

func (a *aldi) SearchRequestOptions(string) transfer.Options {
	return transfer.Options{Method: transfer.MethodGet, Headers: transfer.JSONAPIHeaders}
}

func (a *aldi) ProductRequestOptions() transfer.Options {
	return transfer.Options{Method: transfer.MethodGet, Headers: transfer.JSONAPIHeaders}
}

// aldiItem is the subset of the API's product record the model needs.
type aldiItem struct {
	SKU  string `json:"sku"`
	Name string `json:"name"`
	URL  string `json:"urlSlugText"`
	Price struct {
		Amount int64 `json:"amount"`
	} `json:"price"`
	PricePerUnit struct {
		Display string `json:"display"`
		Amount  int64  `json:"amount"`
	} `json:"pricePerUnit"`
	Assets []struct {
		URL string `json:"url"`
	} `json:"assets"`
	Discount struct {
		Text string `json:"text"`
	} `json:"discount"`
	Description string `json:"description"`
}

type aldiSearchResponse struct {
	Data []aldiItem `json:"data"`
}

func (a *aldi) ParseSearchResponse(body []byte, depth int) model.ProductList {
	list := model.NewProductList(depth)

	var resp aldiSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Warn().Err(err).Str("store", "ALDI").Msg("Failed to parse search response")
		return list
	}

	for i, item := range resp.Data {
		if depth != model.DepthIndefinite && len(list.Entries) >= depth {
			break
		}
		product, ok := a.parseItem(i, item)
		if !ok {
			continue
		}
		list.Append(product)
	}

	return list
}

func (a *aldi) parseItem(i int, item aldiItem) (model.Product, bool) {
	if item.SKU == "" || item.Name == "" || item.Price.Amount <= 0 {
		log.Warn().Str("store", "ALDI").Int("position", i).
			Msg("One or more details missing for product in response")
		return model.Product{}, false
	}

	itemPrice := model.Price{Currency: model.EUR, Value: item.Price.Amount}

	product := model.Product{
		Name:      item.Name,
		ID:        a.Prefix() + item.SKU,
		ItemPrice: itemPrice,
		Store:     model.StoreAldi,
		Timestamp: time.Now().Unix(),
	}

	if item.URL != "" {
		product.URL = a.shopBase + "/product/" + strings.TrimPrefix(item.URL, "/")
	}
	if len(item.Assets) > 0 {
		product.ImageURL = item.Assets[0].URL
	}

	// The display string is the only place the unit appears; the amount
	// field carries the actual cents. Parse the string for the unit and
	// override its price with the amount.
	product.PricePerUnit = model.PricePU{Price: itemPrice, Unit: model.UnitPiece}
	if ppu, ok := model.ParsePricePU(item.PricePerUnit.Display); ok && item.PricePerUnit.Amount > 0 {
		ppu.Price = model.Price{Currency: model.EUR, Value: item.PricePerUnit.Amount}
		product.PricePerUnit = ppu
	}

	if text := strings.TrimSpace(item.Discount.Text); text != "" {
		product.Offers = append(product.Offers, model.ParseOffer(text, time.Time{}))
	}

	return product, true
}

// ParseProductPage decodes the API's single-product payload, which wraps one
// record in the same shape the search endpoint uses.
func (a *aldi) ParseProductPage(body []byte) (model.Product, bool) {
	var resp struct {
		Data aldiItem `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Warn().Err(err).Str("store", "ALDI").Msg("Failed to parse product response")
		return model.Product{}, false
	}

	product, ok := a.parseItem(0, resp.Data)
	if !ok {
		return model.Product{}, false
	}
	product.Description = resp.Data.Description
	product.FullInfo = true
	return product, true
}
