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

// storefrontSelectors names the CSS hooks a storefront-platform shop uses.
// SuperValu and Dunnes Stores run the same platform with the same markup, so
// both adapters share this parse and differ only in data.
type storefrontSelectors struct {
	listing   string
	name      string
	price     string
	priceInfo string
	image     string
	link      string
	offer     string
}

var defaultStorefrontSelectors = storefrontSelectors{
	listing:   "[class*='ColListing']",
	name:      "[data-testid$='ProductNameTestId']",
	price:     "[class*='ProductCardPrice-']",
	priceInfo: "[class*='ProductCardPriceInfo']",
	image:     "[class*='ProductCardImage-']",
	link:      "[class*='ProductCardHiddenLink']",
	offer:     "[class*='ProductCardOffer']",
}

// storefront implements the SuperValu-family HTML scraping strategy: search
// results are card listings located by class-prefix selectors, product pages
// expose their details through itemprop meta tags in the head.
type storefront struct {
	id        model.StoreID
	name      string
	prefix    string
	homepage  string
	searchFmt string // relative to homepage; %s is the escaped query
	selectors storefrontSelectors
}

func (s *storefront) ID() model.StoreID { return s.id }
func (s *storefront) Name() string      { return s.name }
func (s *storefront) Prefix() string    { return s.prefix }

func (s *storefront) SearchURL(query string) string {
	return s.homepage + strings.Replace(s.searchFmt, "%s", url.QueryEscape(query), 1)
}

func (s *storefront) SearchRequestOptions(string) transfer.Options {
	return transfer.Options{Method: transfer.MethodGet, Headers: transfer.DefaultHeaders}
}

func (s *storefront) ProductRequestOptions() transfer.Options {
	return transfer.Options{Method: transfer.MethodGet, Headers: transfer.DefaultHeaders}
}

func (s *storefront) ParseSearchResponse(body []byte, depth int) model.ProductList {
	list := model.NewProductList(depth)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("store", s.name).Msg("Failed to parse search response")
		return list
	}

	doc.Find(s.selectors.listing).EachWithBreak(func(i int, card *goquery.Selection) bool {
		product, ok := s.parseCard(i, card)
		if !ok {
			return true
		}
		list.Append(product)
		return depth == model.DepthIndefinite || len(list.Entries) < depth
	})

	return list
}

// parseCard extracts one search-result row. Rows missing any required field
// are skipped; partial pages are still useful.
func (s *storefront) parseCard(i int, card *goquery.Selection) (model.Product, bool) {
	name := card.Find(s.selectors.name)
	price := card.Find(s.selectors.price)
	priceInfo := card.Find(s.selectors.priceInfo)
	image := card.Find(s.selectors.image)
	link := card.Find(s.selectors.link)

	if name.Length() == 0 || price.Length() == 0 || link.Length() == 0 {
		log.Warn().Str("store", s.name).Int("position", i).
			Msg("One or more details missing for product on page")
		return model.Product{}, false
	}

	nameText := strings.TrimSpace(name.First().Text())
	if nameText == "" {
		log.Warn().Str("store", s.name).Int("position", i).Msg("Name not found for product")
		return model.Product{}, false
	}

	// The native sku leads the data-testid attribute, "<sku>-ProductNameTestId".
	testID, _ := name.First().Attr("data-testid")
	sku := testID
	if cut := strings.IndexByte(testID, '-'); cut >= 0 {
		sku = testID[:cut]
	}
	if sku == "" {
		log.Warn().Str("store", s.name).Int("position", i).Msg("SKU not found for product")
		return model.Product{}, false
	}

	itemPrice, ok := model.ParsePrice(strings.TrimSpace(price.First().Text()))
	if !ok {
		log.Warn().Str("store", s.name).Str("name", nameText).Msg("Unparseable item price")
		return model.Product{}, false
	}

	product := model.Product{
		Name:      nameText,
		ID:        s.prefix + sku,
		ItemPrice: itemPrice,
		Store:     s.id,
		Timestamp: time.Now().Unix(),
	}

	if href, ok := link.First().Attr("href"); ok {
		product.URL = s.absoluteURL(href)
	}
	if src, ok := image.First().Attr("src"); ok {
		product.ImageURL = src
	}

	if ppu, ok := model.ParsePricePU(strings.TrimSpace(priceInfo.First().Text())); ok {
		product.PricePerUnit = ppu
	}
	if product.PricePerUnit.Unit == model.UnitNone {
		product.PricePerUnit = model.PricePU{Price: product.ItemPrice, Unit: model.UnitPiece}
	}

	card.Find(s.selectors.offer).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		product.Offers = append(product.Offers, model.ParseOffer(text, time.Time{}))
	})

	return product, true
}

func (s *storefront) ParseProductPage(body []byte) (model.Product, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("store", s.name).Msg("Failed to parse product page")
		return model.Product{}, false
	}

	product := model.Product{
		Store:     s.id,
		Timestamp: time.Now().Unix(),
		FullInfo:  true,
	}

	doc.Find("head meta[itemprop]").Each(func(_ int, meta *goquery.Selection) {
		prop, _ := meta.Attr("itemprop")
		content, _ := meta.Attr("content")
		switch prop {
		case "name":
			product.Name = content
		case "description":
			product.Description = content
		case "image":
			href, _ := meta.Attr("href")
			product.ImageURL = href
		case "sku":
			product.ID = s.prefix + content
		case "price":
			if p, ok := model.ParsePrice(content); ok {
				product.ItemPrice = p
			}
		}
	})

	if product.Name == "" || product.ID == s.prefix || product.ID == "" {
		log.Warn().Str("store", s.name).Msg("Product page missing name or sku")
		return model.Product{}, false
	}

	unitPrice := doc.Find("[class*='PdpUnitPrice-']").First()
	if ppu, ok := model.ParsePricePU(strings.TrimSpace(unitPrice.Text())); unitPrice.Length() > 0 && ok {
		product.PricePerUnit = ppu
	} else {
		product.PricePerUnit = model.PricePU{Price: product.ItemPrice, Unit: model.UnitPiece}
	}

	return product, true
}

// absoluteURL resolves hrefs from the page against the shop homepage.
func (s *storefront) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(s.homepage)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
