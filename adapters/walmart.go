package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"grocery-helpers/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// Walmart page markup
const (
	walmartTile         = ".product-tile"
	walmartNoResults    = "[data-automation='no-results']"
	walmartTitle        = ".title"
	walmartDescription  = ".description"
	walmartPriceUnit    = ".price-unit"
	walmartPriceCurrent = ".price-current"
	walmartSKUInput     = "input.productSkus"
	walmartProductLink  = ".product-link"
	walmartLDJSON       = "script[type='application/ld+json']"
	walmartPPU          = "span[data-automation='buybox-price-ppu']"
	walmartIdentifiers  = "Product Identifiers"
	walmartQuantity     = "span[data-automation='quantity'] input"
	walmartSignedIn     = "[data-automation='account-greeting']"
	walmartSignedOut    = "[data-automation='sign-in-link']"
)

// walmartAddToCart clicks the add-to-cart button and reports whether one was found
const walmartAddToCart = `(() => {
	const button = Array.from(document.querySelectorAll('button'))
		.find(b => b.textContent.includes('Add to cart'));
	if (!button) { return false; }
	button.click();
	return true;
})()`

// walmartLinkPath pulls the product path out of a knockout data-bind attribute
var walmartLinkPath = regexp.MustCompile(`'(/[^']+)'`)

var walmartSlots = slotMarkup{
	locatorURL: func(baseURL, postalCode string) string {
		return fmt.Sprintf("%s/en/stores-near-me?postalCode=%s", baseURL, url.QueryEscape(postalCode))
	},
	locationItem:     "[data-automation='store-list-item']",
	locationIDAttr:   "data-store-id",
	locationName:     "[data-automation='store-name']",
	locationAddress:  "[data-automation='store-address']",
	locationSelected: "[aria-selected='true']",
	locationSelect:   "[data-automation='select-store-button']",
	openPicker:       "[data-automation='pickup-slot-opener']",
	day:              "[data-automation='slot-day']",
	dayLabel:         "[data-automation='slot-day-label']",
	slot:             "[data-automation='slot']",
	slotTime:         "[data-automation='slot-time']",
	slotStatus:       "[data-automation='slot-status']",
	next:             "[data-automation='slot-next']",
	termination:      types.TerminateOnDisabledNext,
}

// walmartLD is the subset of schema.org JSON-LD the product page embeds
type walmartLD struct {
	Type        string          `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	SKU         flexString      `json:"sku"`
	Image       json.RawMessage `json:"image"`
	Brand       struct {
		Name string `json:"name"`
	} `json:"brand"`
	Offers struct {
		Price flexString `json:"price"`
	} `json:"offers"`
	ItemListElement []struct {
		Item struct {
			Name string `json:"name"`
		} `json:"item"`
	} `json:"itemListElement"`
}

// WalmartAdapter handles walmart.ca
type WalmartAdapter struct {
	*BaseAdapter
}

// NewWalmartAdapter creates a new Walmart adapter
func NewWalmartAdapter(config *types.Config, logger types.Logger) *WalmartAdapter {
	return &WalmartAdapter{
		BaseAdapter: NewBaseAdapter("Walmart", "https://www.walmart.ca", config, logger),
	}
}

// Search returns the products listed for term
func (w *WalmartAdapter) Search(ctx context.Context, term string) ([]types.Product, error) {
	var products []types.Product
	err := w.withSession(ctx, func(br types.Browser) error {
		if err := br.Navigate(ctx, fmt.Sprintf("%s/search/%s", w.baseURL, url.PathEscape(term))); err != nil {
			return err
		}

		doc, err := w.waitForDoc(ctx, br, func(doc *goquery.Document) (bool, error) {
			if doc.Find(walmartNoResults).Length() > 0 {
				return false, types.ErrNoSearchResults
			}
			return doc.Find(walmartTile).Length() > 0, nil
		})
		if err != nil {
			return fmt.Errorf("search for %q: %w", term, err)
		}

		doc.Find(walmartTile).Each(func(i int, tile *goquery.Selection) {
			product, err := w.parseSearchTile(tile)
			if err != nil {
				w.logger.Warnf("Skipping search result %d for %q: %v", i, term, err)
				return
			}
			products = append(products, *product)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (w *WalmartAdapter) parseSearchTile(tile *goquery.Selection) (*types.Product, error) {
	product := &types.Product{
		Name:        strings.TrimSpace(tile.Find(walmartTitle).First().Text()),
		Description: strings.TrimSpace(tile.Find(walmartDescription).First().Text()),
		Categories:  []string{},
		UnitPrices:  []types.UnitPrice{},
	}

	if unit := strings.TrimSpace(tile.Find(walmartPriceUnit).First().Text()); unit != "" {
		product.UnitPrices = append(product.UnitPrices, splitUnitPrice(unit))
	}

	raw, ok := tile.Find(walmartSKUInput).First().Attr("value")
	if !ok {
		return nil, fmt.Errorf("missing product sku")
	}
	var sku struct {
		ProductID flexString `json:"productid"`
	}
	if err := json.Unmarshal([]byte(raw), &sku); err != nil {
		return nil, fmt.Errorf("failed to decode product sku: %w", err)
	}
	product.SKU = sku.ProductID.String()

	bind, _ := tile.Find(walmartProductLink).First().Attr("data-bind")
	match := walmartLinkPath.FindStringSubmatch(bind)
	if match == nil {
		return nil, fmt.Errorf("no product link in %q", bind)
	}
	product.Link = w.baseURL + match[1]

	price, err := parsePrice(tile.Find(walmartPriceCurrent).First().Text())
	if err != nil {
		w.logger.Warnf("Product %s: %v", product.SKU, err)
	} else {
		product.Price = price
	}
	return product, nil
}

// GetProductInfo scrapes the product page at link
func (w *WalmartAdapter) GetProductInfo(ctx context.Context, link string) (*types.Product, error) {
	product, _, err := w.GetProductPage(ctx, link)
	return product, err
}

// GetProductPage scrapes the product page at link from its structured data
// and also returns the rendered HTML.
func (w *WalmartAdapter) GetProductPage(ctx context.Context, link string) (*types.Product, string, error) {
	var (
		product *types.Product
		content string
	)
	err := w.withSession(ctx, func(br types.Browser) error {
		if err := w.navigateIfNeeded(ctx, br, link); err != nil {
			return err
		}

		var docs []walmartLD
		doc, err := w.waitForDoc(ctx, br, func(doc *goquery.Document) (bool, error) {
			docs = parseLD(doc)
			return findLD(docs, "Product") != nil, nil
		})
		if err != nil {
			return fmt.Errorf("product page %s: %w", link, err)
		}

		ld := findLD(docs, "Product")
		product = &types.Product{
			SKU:         ld.SKU.String(),
			Name:        ld.Name,
			Brand:       ld.Brand.Name,
			Description: ld.Description,
			Link:        link,
			ImageURL:    firstImage(ld.Image),
			Categories:  []string{},
			UnitPrices:  []types.UnitPrice{},
		}
		if price, err := parsePrice(ld.Offers.Price.String()); err == nil {
			product.Price = price
		} else {
			w.logger.Warnf("Product %s: %v", product.SKU, err)
		}

		if crumbs := findLD(docs, "BreadcrumbList"); crumbs != nil {
			for i, element := range crumbs.ItemListElement {
				if i == 0 {
					continue
				}
				product.Categories = append(product.Categories, element.Item.Name)
			}
		}

		if ppu, err := w.ExtractText(doc, walmartPPU); err == nil && ppu != "" {
			product.UnitPrices = append(product.UnitPrices, splitUnitPrice(ppu))
		}
		product.Identifiers = productIdentifiers(doc)

		content, err = doc.Html()
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return product, content, nil
}

func parseLD(doc *goquery.Document) []walmartLD {
	var docs []walmartLD
	doc.Find(walmartLDJSON).Each(func(i int, s *goquery.Selection) {
		var ld walmartLD
		if err := json.Unmarshal([]byte(s.Text()), &ld); err == nil {
			docs = append(docs, ld)
		}
	})
	return docs
}

func findLD(docs []walmartLD, kind string) *walmartLD {
	for i := range docs {
		if docs[i].Type == kind {
			return &docs[i]
		}
	}
	return nil
}

func firstImage(raw json.RawMessage) string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// productIdentifiers reads the three field/value rows that follow the
// "Product Identifiers" heading.
func productIdentifiers(doc *goquery.Document) map[string]string {
	heading := doc.Find(fmt.Sprintf(":contains('%s')", walmartIdentifiers)).Last()
	if heading.Length() == 0 {
		return nil
	}

	ids := make(map[string]string)
	row := heading
	for i := 0; i < 3; i++ {
		row = row.Next()
		if row.Length() == 0 {
			break
		}
		var field, value string
		if children := row.Children(); children.Length() >= 2 {
			field = strings.TrimSpace(children.Eq(0).Text())
			value = strings.TrimSpace(children.Eq(1).Text())
		} else {
			field, value, _ = strings.Cut(strings.TrimSpace(row.Text()), "\n")
		}
		if field != "" {
			ids[strings.TrimSpace(field)] = strings.TrimSpace(value)
		}
	}
	return ids
}

// AddProductToCurrentOrder sets the quantity field and adds the product at link to the cart
func (w *WalmartAdapter) AddProductToCurrentOrder(ctx context.Context, link string, quantity int) error {
	return w.withSession(ctx, func(br types.Browser) error {
		if err := br.Navigate(ctx, link); err != nil {
			return err
		}
		if _, err := w.waitForSelector(ctx, br, walmartQuantity); err != nil {
			return fmt.Errorf("product page %s: %w", link, err)
		}

		if err := br.SelectAll(ctx, walmartQuantity); err != nil {
			return err
		}
		if err := br.SendKeys(ctx, walmartQuantity, strconv.Itoa(quantity)); err != nil {
			return err
		}

		var clicked bool
		if err := br.Evaluate(ctx, walmartAddToCart, &clicked); err != nil {
			return err
		}
		if !clicked {
			return fmt.Errorf("add to cart button not found on %s", link)
		}
		w.logger.Infof("Added %d x %s to cart", quantity, link)
		return w.settle(ctx)
	})
}

// GetPastOrdersList is not available: the site renders no order history
func (w *WalmartAdapter) GetPastOrdersList(ctx context.Context) ([]types.OrderSummary, error) {
	return nil, fmt.Errorf("%s past orders: %w", w.storeName, types.ErrNotSupported)
}

// GetOrderItems is not available: the site renders no order history
func (w *WalmartAdapter) GetOrderItems(ctx context.Context, order types.OrderSummary) ([]types.OrderItem, error) {
	return nil, fmt.Errorf("%s order details: %w", w.storeName, types.ErrNotSupported)
}

// GetItemizedOrderHistory is not available: the site renders no order history
func (w *WalmartAdapter) GetItemizedOrderHistory(ctx context.Context) ([]types.OrderItem, error) {
	return nil, fmt.Errorf("%s order history: %w", w.storeName, types.ErrNotSupported)
}

// AddProductToDatabase scrapes and stores the product at link unless it is already known
func (w *WalmartAdapter) AddProductToDatabase(ctx context.Context, link string) error {
	return w.addProductToDatabase(ctx, w, link)
}

// MapSKUToLink finds the product link for a SKU
func (w *WalmartAdapter) MapSKUToLink(ctx context.Context, sku string) (string, error) {
	return w.mapSKUToLink(ctx, w, sku)
}

// GetPickupLocations lists the stores offering pickup near postalCode
func (w *WalmartAdapter) GetPickupLocations(ctx context.Context, postalCode string) ([]types.PickupLocation, error) {
	var locations []types.PickupLocation
	err := w.withSession(ctx, func(br types.Browser) error {
		var err error
		locations, err = w.listLocations(ctx, br, walmartSlots, postalCode)
		return err
	})
	return locations, err
}

// GetPickupSlots selects a pickup store and reads its whole slot picker
func (w *WalmartAdapter) GetPickupSlots(ctx context.Context, postalCode string, location string) (*types.SlotTable, error) {
	var table *types.SlotTable
	err := w.withSession(ctx, func(br types.Browser) error {
		var err error
		table, err = w.collectSlots(ctx, br, walmartSlots, postalCode, location)
		return err
	})
	return table, err
}

// IsSignedIn reports whether the session's browser profile is logged in
func (w *WalmartAdapter) IsSignedIn(ctx context.Context) (bool, error) {
	var signedIn bool
	err := w.withSession(ctx, func(br types.Browser) error {
		if err := br.Navigate(ctx, w.baseURL); err != nil {
			return err
		}
		doc, err := w.waitForDoc(ctx, br, func(doc *goquery.Document) (bool, error) {
			return doc.Find(walmartSignedIn).Length() > 0 || doc.Find(walmartSignedOut).Length() > 0, nil
		})
		if err != nil {
			return fmt.Errorf("account menu: %w", err)
		}
		signedIn = doc.Find(walmartSignedIn).Length() > 0
		return nil
	})
	return signedIn, err
}

var _ types.RetailerAdapter = (*WalmartAdapter)(nil)
