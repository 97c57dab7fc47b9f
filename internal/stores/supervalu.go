package stores

import "github.com/fitsch/aggregator/internal/model"

// NewSuperValu returns the SuperValu adapter. The shop runs the storefront
// platform with the default markup.
func NewSuperValu() Adapter {
	return &storefront{
		id:        model.StoreSuperValu,
		name:      "SuperValu",
		prefix:    "SV",
		homepage:  "https://shop.supervalu.ie/sm/delivery/rsid/5550",
		searchFmt: "/results?q=%s&skip=0",
		selectors: defaultStorefrontSelectors,
	}
}
