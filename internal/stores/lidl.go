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

// lidl scrapes the Lidl Ireland online shop. Search results are article
// tiles; the price-per-unit line doubles as the pack-size description.
type lidl struct {
	homepage string
}

// NewLidl returns the Lidl adapter.
func NewLidl() Adapter {
	return &lidl{homepage: "https://www.lidl.ie"}
}

func (l *lidl) ID() model.StoreID { return model.StoreLidl }
func (l *lidl) Name() string      { return "Lidl" }
func (l *lidl) Prefix() string    { return "LD" }

func (l *lidl) SearchURL(query string) string {
	return l.homepage + "/q/search?q=" + url.QueryEscape(query)
}

func (l *lidl) SearchRequestOptions(string) transfer.Options {
	return transfer.Options{Method: transfer.MethodGet, Headers: transfer.DefaultHeaders}
}

func (l *lidl) ProductRequestOptions() transfer.Options {
	return transfer.Options{Method: transfer.MethodGet, Headers: transfer.DefaultHeaders}
}

func (l *lidl) ParseSearchResponse(body []byte, depth int) model.ProductList {
	list := model.NewProductList(depth)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("store", "Lidl").Msg("Failed to parse search response")
		return list
	}

	doc.Find("article[class*='product-grid-box']").EachWithBreak(func(i int, tile *goquery.Selection) bool {
		product, ok := l.parseTile(i, tile)
		if !ok {
			return true
		}
		list.Append(product)
		return depth == model.DepthIndefinite || len(list.Entries) < depth
	})

	return list
}

func (l *lidl) parseTile(i int, tile *goquery.Selection) (model.Product, bool) {
	name := strings.TrimSpace(tile.Find("[class*='grid-box__title']").First().Text())
	priceText := strings.TrimSpace(tile.Find("[class*='price__wrapper']").First().Text())
	sku, _ := tile.Attr("data-sku")
	if sku == "" {
		sku, _ = tile.Attr("data-productid")
	}

	if name == "" || priceText == "" || sku == "" {
		log.Warn().Str("store", "Lidl").Int("position", i).
			Msg("One or more details missing for product on page")
		return model.Product{}, false
	}

	itemPrice, ok := model.ParsePrice(priceText)
	if !ok {
		log.Warn().Str("store", "Lidl").Str("name", name).Msg("Unparseable item price")
		return model.Product{}, false
	}

	product := model.Product{
		Name:      name,
		ID:        l.Prefix() + sku,
		ItemPrice: itemPrice,
		Store:     model.StoreLidl,
		Timestamp: time.Now().Unix(),
	}

	if href, ok := tile.Find("a").First().Attr("href"); ok {
		product.URL = l.absoluteURL(href)
	}
	if src, ok := tile.Find("img").First().Attr("src"); ok {
		product.ImageURL = src
	}

	ppuText := strings.TrimSpace(tile.Find("[class*='price__base-price']").First().Text())
	if ppu, ok := model.ParsePricePU(ppuText); ok {
		product.PricePerUnit = ppu
	} else {
		product.PricePerUnit = model.PricePU{Price: itemPrice, Unit: model.UnitPiece}
	}

	tile.Find("[class*='price__ribbon']").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		product.Offers = append(product.Offers, model.ParseOffer(text, time.Time{}))
	})

	return product, true
}

func (l *lidl) ParseProductPage(body []byte) (model.Product, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("store", "Lidl").Msg("Failed to parse product page")
		return model.Product{}, false
	}

	product := model.Product{
		Store:     model.StoreLidl,
		Timestamp: time.Now().Unix(),
		FullInfo:  true,
	}

	doc.Find("head meta").Each(func(_ int, meta *goquery.Selection) {
		prop, _ := meta.Attr("property")
		content, _ := meta.Attr("content")
		switch prop {
		case "og:title":
			product.Name = content
		case "og:description":
			product.Description = content
		case "og:image":
			product.ImageURL = content
		case "og:url":
			product.URL = content
		}
	})

	main := doc.Find("article[class*='product-grid-box']").First()
	if sku, ok := main.Attr("data-sku"); ok && sku != "" {
		product.ID = l.Prefix() + sku
	}

	if p, ok := model.ParsePrice(strings.TrimSpace(main.Find("[class*='price__wrapper']").First().Text())); ok {
		product.ItemPrice = p
	}

	if product.Name == "" || product.ID == "" {
		log.Warn().Str("store", "Lidl").Msg("Product page missing name or sku")
		return model.Product{}, false
	}

	if ppu, ok := model.ParsePricePU(strings.TrimSpace(main.Find("[class*='price__base-price']").First().Text())); ok {
		product.PricePerUnit = ppu
	} else {
		product.PricePerUnit = model.PricePU{Price: product.ItemPrice, Unit: model.UnitPiece}
	}

	return product, true
}

func (l *lidl) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, _ := url.Parse(l.homepage)
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
