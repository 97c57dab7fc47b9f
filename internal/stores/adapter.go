// Package stores maps each retailer to an adapter that knows how to build
// search requests against the retailer's public catalog endpoint and parse
// the responses into the shared product model. Adapters are registered in a
// Registry keyed by StoreID.
package stores

import (
	"fmt"
	"sync"

	"github.com/fitsch/aggregator/internal/model"
	"github.com/fitsch/aggregator/internal/transfer"
)

// Adapter is the per-retailer function-set. Selector strings and endpoint
// shapes are data owned by each implementation; the rest of the system only
// sees ProductLists.
//
// Every returned product carries the adapter's StoreID, a freshly sampled
// timestamp, an absolute URL and an id of the form "<prefix><native sku>".
// Adapters that cannot recover a price-per-unit fall back to the item price
// per piece. Malformed rows are skipped with a warning; partial results are
// valid.
type Adapter interface {
	ID() model.StoreID
	Name() string
	Prefix() string

	// SearchURL escapes the query and substitutes it into the retailer's
	// search endpoint template.
	SearchURL(query string) string
	// SearchRequestOptions selects the method and header-set for a search.
	SearchRequestOptions(query string) transfer.Options
	// ParseSearchResponse parses a search response into at most depth
	// entries (DepthIndefinite = no cap), relevance assigned by position.
	ParseSearchResponse(body []byte, depth int) model.ProductList

	// ProductRequestOptions selects request options for a product page.
	ProductRequestOptions() transfer.Options
	// ParseProductPage parses a dedicated product page; the result carries
	// full_info = true. Returns false when no product could be recovered.
	ParseProductPage(body []byte) (model.Product, bool)
}

// Registry holds the registered adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.StoreID]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[model.StoreID]Adapter)}
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.ID()] = a
}

func (r *Registry) Get(id model.StoreID) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// Selection returns the set of all registered retailers.
func (r *Registry) Selection() model.StoreSelection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s model.StoreSelection
	for id := range r.adapters {
		s = s.Add(id)
	}
	return s
}

// List returns registered StoreIDs in bit-ascending order.
func (r *Registry) List() []model.StoreID {
	return r.Selection().IDs()
}

// NewDefaultRegistry registers every production adapter.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewSuperValu())
	r.Register(NewDunnes())
	r.Register(NewTesco())
	r.Register(NewLidl())
	r.Register(NewAldi())
	return r
}

// ErrUnknownStore is returned when a selection names an unregistered store.
func ErrUnknownStore(id model.StoreID) error {
	return fmt.Errorf("no adapter registered for store %s", id)
}
