package adapters

import (
	"fmt"
	"sort"

	"grocery-helpers/internal/types"
)

// loblawBanners maps the Loblaw-family store names to their sites
var loblawBanners = map[string]string{
	"Real Canadian Superstore": "https://www.realcanadiansuperstore.ca",
	"Loblaws":                  "https://www.loblaws.ca",
	"Zehrs":                    "https://www.zehrs.ca",
	"Valu-mart":                "https://www.valumart.ca",
}

const walmartStore = "Walmart"

// New creates the adapter for store
func New(store string, config *types.Config, logger types.Logger) (types.RetailerAdapter, error) {
	if store == walmartStore {
		return NewWalmartAdapter(config, logger), nil
	}
	if baseURL, ok := loblawBanners[store]; ok {
		return NewLoblawAdapter(store, baseURL, config, logger), nil
	}
	return nil, fmt.Errorf("unknown store %q (supported: %v)", store, SupportedStores())
}

// SupportedStores lists every store name New accepts, sorted
func SupportedStores() []string {
	stores := []string{walmartStore}
	for name := range loblawBanners {
		stores = append(stores, name)
	}
	sort.Strings(stores)
	return stores
}
