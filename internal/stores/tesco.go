package stores

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/fitsch/aggregator/internal/model"
	"github.com/fitsch/aggregator/internal/transfer"
)

// tesco scrapes the Tesco Ireland grocery site. The markup differs from the
// storefront platform but the strategy is the same: locate result rows by
// class hooks and pull fields out of each row, skipping malformed ones.
type tesco struct {
	homepage string
}

// NewTesco returns the Tesco adapter.
func NewTesco() Adapter {
	return &tesco{homepage: "https://www.tesco.ie/groceries/en-IE"}
}

func (t *tesco) ID() model.StoreID { return model.StoreTesco }
func (t *tesco) Name() string      { return "Tesco" }
func (t *tesco) Prefix() string    { return "T" }

func (t *tesco) SearchURL(query string) string {
	return t.homepage + "/search?query=" + url.QueryEscape(query)
}

func (t *tesco) SearchRequestOptions(string) transfer.Options {
	return transfer.Options{Method: transfer.MethodGet, Headers: transfer.DefaultHeaders}
}

func (t *tesco) ProductRequestOptions() transfer.Options {
	return transfer.Options{Method: transfer.MethodGet, Headers: transfer.DefaultHeaders}
}

func (t *tesco) ParseSearchResponse(body []byte, depth int) model.ProductList {
	list := model.NewProductList(depth)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("store", "Tesco").Msg("Failed to parse search response")
		return list
	}

	doc.Find("li[class*='product-list--list-item']").EachWithBreak(func(i int, row *goquery.Selection) bool {
		product, ok := t.parseRow(i, row)
		if !ok {
			return true
		}
		list.Append(product)
		return depth == model.DepthIndefinite || len(list.Entries) < depth
	})

	return list
}

func (t *tesco) parseRow(i int, row *goquery.Selection) (model.Product, bool) {
	link := row.Find("a[href*='/products/']").First()
	priceSel := row.Find("p[class*='beans-price__text']").First()
	ppuSel := row.Find("p[class*='beans-price__subtext']").First()

	name := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	if name == "" || href == "" || priceSel.Length() == 0 {
		log.Warn().Str("store", "Tesco").Int("position", i).
			Msg("One or more details missing for product on page")
		return model.Product{}, false
	}

	// Product URLs end in the native sku: .../products/<sku>
	sku := href[strings.LastIndexByte(href, '/')+1:]
	if q := strings.IndexByte(sku, '?'); q >= 0 {
		sku = sku[:q]
	}
	if sku == "" {
		log.Warn().Str("store", "Tesco").Int("position", i).Msg("SKU not found for product")
		return model.Product{}, false
	}

	itemPrice, ok := model.ParsePrice(strings.TrimSpace(priceSel.Text()))
	if !ok {
		log.Warn().Str("store", "Tesco").Str("name", name).Msg("Unparseable item price")
		return model.Product{}, false
	}

	product := model.Product{
		Name:      name,
		ID:        t.Prefix() + sku,
		URL:       t.absoluteURL(href),
		ItemPrice: itemPrice,
		Store:     model.StoreTesco,
		Timestamp: time.Now().Unix(),
	}

	if src, ok := row.Find("img").First().Attr("src"); ok {
		product.ImageURL = src
	}

	if ppu, ok := model.ParsePricePU(strings.TrimSpace(ppuSel.Text())); ok {
		product.PricePerUnit = ppu
	} else {
		product.PricePerUnit = model.PricePU{Price: itemPrice, Unit: model.UnitPiece}
	}

	row.Find("span[class*='offer-text']").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		product.Offers = append(product.Offers, model.ParseOffer(text, time.Time{}))
	})

	return product, true
}

func (t *tesco) ParseProductPage(body []byte) (model.Product, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("store", "Tesco").Msg("Failed to parse product page")
		return model.Product{}, false
	}

	product := model.Product{
		Store:     model.StoreTesco,
		Timestamp: time.Now().Unix(),
		FullInfo:  true,
	}

	product.Name = strings.TrimSpace(doc.Find("h1").First().Text())

	doc.Find("head meta").Each(func(_ int, meta *goquery.Selection) {
		prop, _ := meta.Attr("property")
		content, _ := meta.Attr("content")
		switch prop {
		case "og:image":
			product.ImageURL = content
		case "og:description":
			product.Description = content
		case "og:url":
			product.URL = content
		}
	})

	if product.URL != "" {
		sku := product.URL[strings.LastIndexByte(product.URL, '/')+1:]
		product.ID = t.Prefix() + sku
	}

	if p, ok := model.ParsePrice(strings.TrimSpace(doc.Find("p[class*='beans-price__text']").First().Text())); ok {
		product.ItemPrice = p
	}

	if product.Name == "" || product.ID == "" {
		log.Warn().Str("store", "Tesco").Msg("Product page missing name or sku")
		return model.Product{}, false
	}

	if ppu, ok := model.ParsePricePU(strings.TrimSpace(doc.Find("p[class*='beans-price__subtext']").First().Text())); ok {
		product.PricePerUnit = ppu
	} else {
		product.PricePerUnit = model.PricePU{Price: product.ItemPrice, Unit: model.UnitPiece}
	}

	return product, true
}

func (t *tesco) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, _ := url.Parse("https://www.tesco.ie")
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
