package stores

import "github.com/fitsch/aggregator/internal/model"

// NewDunnes returns the Dunnes Stores adapter. Dunnes runs the same
// storefront platform as SuperValu, so only the endpoint data differs.
func NewDunnes() Adapter {
	return &storefront{
		id:        model.StoreDunnes,
		name:      "Dunnes Stores",
		prefix:    "DS",
		homepage:  "https://www.dunnesstoresgrocery.com/sm/delivery/rsid/258",
		searchFmt: "/results?q=%s&skip=0",
		selectors: defaultStorefrontSelectors,
	}
}
