package model

import "time"

// Product is a single catalog entry as scraped from a retailer. ID is
// "<store prefix><native sku>", globally unique and stable across scrapes.
// FullInfo is true only when the record was produced from the product's
// dedicated page rather than a search-result row.
type Product struct {
	Name         string  `json:"name" bson:"name" msgpack:"name"`
	Description  string  `json:"description" bson:"description" msgpack:"description"`
	ImageURL     string  `json:"image_url" bson:"image_url" msgpack:"image_url"`
	URL          string  `json:"url" bson:"url" msgpack:"url"`
	ID           string  `json:"id" bson:"id" msgpack:"id"`
	ItemPrice    Price   `json:"item_price" bson:"item_price" msgpack:"item_price"`
	PricePerUnit PricePU `json:"price_per_unit" bson:"price_per_unit" msgpack:"price_per_unit"`
	Store        StoreID `json:"store" bson:"store" msgpack:"store"`
	Timestamp    int64   `json:"timestamp" bson:"timestamp" msgpack:"timestamp"`
	FullInfo     bool    `json:"full_info" bson:"full_info" msgpack:"full_info"`
	Offers       []Offer `json:"offers,omitempty" bson:"offers,omitempty" msgpack:"offers,omitempty"`
}

// QueryResultInfo records where a product appeared in the originating search
// response (zero-based).
type QueryResultInfo struct {
	Relevance int `json:"relevance" bson:"relevance" msgpack:"relevance"`
}

// QueryTemplate is the cached record for a (query string, stores) pair:
// which retailers were consulted, to what depth, when, and which product ids
// matched. A template is replaced wholesale on each re-fetch.
type QueryTemplate struct {
	QueryString string                     `json:"query_string" bson:"query_string"`
	Stores      StoreSelection             `json:"stores" bson:"stores"`
	Results     map[string]QueryResultInfo `json:"results" bson:"results"`
	Timestamp   int64                      `json:"timestamp" bson:"timestamp"`
	Depth       int                        `json:"depth" bson:"depth"`
}

// DepthIndefinite means "as many results as the retailer returns". It is the
// identity for the min fold applied when product lists are merged.
const DepthIndefinite = -1

// NormalizeDepth maps the zero and negative forms onto DepthIndefinite.
func NormalizeDepth(depth int) int {
	if depth <= 0 {
		return DepthIndefinite
	}
	return depth
}

// MinDepth folds two depths, treating DepthIndefinite as the identity.
func MinDepth(a, b int) int {
	a, b = NormalizeDepth(a), NormalizeDepth(b)
	switch {
	case a == DepthIndefinite:
		return b
	case b == DepthIndefinite:
		return a
	case b < a:
		return b
	}
	return a
}

// DepthCovers reports whether a cached depth satisfies a requested depth.
func DepthCovers(cached, requested int) bool {
	cached, requested = NormalizeDepth(cached), NormalizeDepth(requested)
	if cached == DepthIndefinite {
		return true
	}
	if requested == DepthIndefinite {
		return false
	}
	return cached >= requested
}

// ProductEntry pairs a product with its position in the search it came from.
type ProductEntry struct {
	Product Product
	Info    QueryResultInfo
}

// ProductList is the in-memory, non-persisted aggregation of search results
// with the effective depth they were fetched at.
type ProductList struct {
	Entries []ProductEntry
	Depth   int
}

// NewProductList creates an empty list at the given depth.
func NewProductList(depth int) ProductList {
	return ProductList{Depth: NormalizeDepth(depth)}
}

// Append adds a product at the next relevance position.
func (l *ProductList) Append(p Product) {
	l.Entries = append(l.Entries, ProductEntry{
		Product: p,
		Info:    QueryResultInfo{Relevance: len(l.Entries)},
	})
}

// Add concatenates another list's entries and folds the depth down to the
// minimum of the two, with DepthIndefinite as the identity.
func (l *ProductList) Add(other ProductList) {
	l.Entries = append(l.Entries, other.Entries...)
	l.Depth = MinDepth(l.Depth, other.Depth)
}

// Products flattens the list into its products, preserving order.
func (l ProductList) Products() []Product {
	out := make([]Product, len(l.Entries))
	for i, e := range l.Entries {
		out[i] = e.Product
	}
	return out
}

// AsQueryTemplate summarises the list as a cache record for the given query
// and retailer selection.
func (l ProductList) AsQueryTemplate(query string, stores StoreSelection) QueryTemplate {
	tmpl := QueryTemplate{
		QueryString: query,
		Stores:      stores,
		Results:     make(map[string]QueryResultInfo, len(l.Entries)),
		Timestamp:   time.Now().Unix(),
		Depth:       l.Depth,
	}
	for _, e := range l.Entries {
		tmpl.Results[e.Product.ID] = e.Info
	}
	return tmpl
}
