package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"grocery-helpers/internal/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp/kb"
)

// Loblaw-family page markup
const (
	loblawSearchItem       = ".product-tile-group__item"
	loblawNoResults        = ".search-no-results__section-title"
	loblawTracking         = ".product-tracking"
	loblawTrackingAttr     = "data-track-products-array"
	loblawTileLink         = ".product-tile__details__info__name__link"
	loblawTileEyebrow      = ".product-tile__eyebrow"
	loblawPackageSize      = ".product-name__item--package-size"
	loblawAverageWeight    = ".product-avarage-weight--product-details-page"
	loblawComparisonPrice  = ".comparison-price-list__item"
	loblawProductImage     = ".responsive-image--product-details-page"
	loblawDetails          = ".product-details-page-details"
	loblawQuantityInput    = ".quantity-selector__quantity__input"
	loblawAddToCart        = "button[data-track='productAddToCartButton']"
	loblawOrderRow         = ".account-order-history-past-orders-delivery-list-item"
	loblawOrderDate        = ".account-order-history-past-orders-delivery-list-item__details__date"
	loblawOrderPrice       = ".account-order-history-past-orders-delivery-list-item__price"
	loblawOrderProduct     = ".order-history-details-products__product"
	loblawOrderProductName = ".order-history-details-products__product__info__name"
	loblawOrderProductCode = ".order-history-details-products__product__info__code"
	loblawOrderProductQty  = ".order-history-details-products__product__quantity"
	loblawOrderProductCost = ".order-history-details-products__product__price"
	loblawAccessCode       = "#accessCode"
	loblawPassword         = "#password"
	loblawLoginButton      = "#login-form > div:nth-of-type(3) > button"
	loblawSignedIn         = "[data-testid='account-menu-button']"
	loblawSignedOut        = "a[href*='/sign-in']"
)

var loblawSlots = slotMarkup{
	locatorURL: func(baseURL, postalCode string) string {
		return fmt.Sprintf("%s/store-locator?searchQuery=%s", baseURL, url.QueryEscape(postalCode))
	},
	locationItem:     ".location-list-item",
	locationIDAttr:   "data-store-id",
	locationName:     ".location-list-item__name",
	locationAddress:  ".location-list-item__address",
	locationSelected: ".location-list-item--selected",
	locationSelect:   ".location-list-item__select-button",
	openPicker:       ".fulfillment-mode-button__timeslot",
	day:              ".timeslot-selector__day",
	dayLabel:         ".timeslot-selector__day__label",
	slot:             ".timeslot-selector__slot",
	slotTime:         ".timeslot-selector__slot__time",
	slotStatus:       ".timeslot-selector__slot__status",
	next:             ".timeslot-selector__next-button",
	termination:      types.TerminateOnDuplicateDay,
}

// loblawTrackingData is one entry of the data-track-products-array attribute
type loblawTrackingData struct {
	SKU          flexString `json:"productSKU"`
	Name         flexString `json:"productName"`
	Brand        flexString `json:"productBrand"`
	Catalog      flexString `json:"productCatalog"`
	Vendor       flexString `json:"productVendor"`
	Price        flexString `json:"productPrice"`
	Quantity     flexString `json:"productQuantity"`
	DealBadge    flexString `json:"dealBadge"`
	LoyaltyBadge flexString `json:"loyaltyBadge"`
	TextBadge    flexString `json:"textBadge"`
	Position     flexString `json:"productPosition"`
	OrderID      flexString `json:"productOrderId"`
	Variant      flexString `json:"productVariant"`
}

// LoblawAdapter handles the Loblaw family of banners (Real Canadian
// Superstore, Loblaws, Zehrs, Valu-mart), which share one site layout.
type LoblawAdapter struct {
	*BaseAdapter
}

// NewLoblawAdapter creates an adapter for one Loblaw-family banner
func NewLoblawAdapter(storeName, baseURL string, config *types.Config, logger types.Logger) *LoblawAdapter {
	return &LoblawAdapter{
		BaseAdapter: NewBaseAdapter(storeName, baseURL, config, logger),
	}
}

// Search returns the products listed for term
func (l *LoblawAdapter) Search(ctx context.Context, term string) ([]types.Product, error) {
	var products []types.Product
	err := l.withSession(ctx, func(br types.Browser) error {
		searchURL := fmt.Sprintf("%s/search?search-bar=%s", l.baseURL, url.QueryEscape(term))
		l.logger.Debugf("Searching %s for %q", l.storeName, term)
		if err := br.Navigate(ctx, searchURL); err != nil {
			return err
		}

		doc, err := l.waitForDoc(ctx, br, func(doc *goquery.Document) (bool, error) {
			if doc.Find(loblawNoResults).Length() > 0 {
				return false, types.ErrNoSearchResults
			}
			return doc.Find(loblawSearchItem).Length() > 0, nil
		})
		if err != nil {
			return fmt.Errorf("search for %q: %w", term, err)
		}

		doc.Find(loblawSearchItem).Each(func(i int, item *goquery.Selection) {
			product, err := l.parseSearchTile(item)
			if err != nil {
				l.logger.Warnf("Skipping search result %d for %q: %v", i, term, err)
				return
			}
			products = append(products, *product)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Debugf("Search for %q returned %d products", term, len(products))
	return products, nil
}

func (l *LoblawAdapter) parseSearchTile(item *goquery.Selection) (*types.Product, error) {
	raw, ok := item.Find(loblawTracking).First().Attr(loblawTrackingAttr)
	if !ok {
		return nil, fmt.Errorf("missing %s", loblawTrackingAttr)
	}
	product, err := l.productFromTracking(raw)
	if err != nil {
		return nil, err
	}

	href, _ := item.Find(loblawTileLink).First().Attr("href")
	product.Link = l.resolveLink(href)
	product.Categories = linkCategories(product.Link)
	product.PreviouslyPurchased = strings.Contains(item.Find(loblawTileEyebrow).Text(), "Previously Purchased")
	product.UnitPrices = tileUnitPrices(item)
	return product, nil
}

// tileUnitPrices reads the price list of a search tile. Each entry is a li of
// spans: either [label, price, quantity], or the estimated-weight layout
// [label, price, (est.), (est.), quantity] for items sold by the each.
func tileUnitPrices(item *goquery.Selection) []types.UnitPrice {
	prices := []types.UnitPrice{}
	item.Find("ul li").Each(func(i int, li *goquery.Selection) {
		var spans []string
		li.Find("span").Each(func(j int, span *goquery.Selection) {
			spans = append(spans, strings.TrimSpace(span.Text()))
		})

		switch {
		case len(spans) == 5 && spans[4] == "ea" && spans[2] == "(est.)" && spans[3] == "(est.)":
			prices = append(prices, types.UnitPrice{Price: spans[1], Quantity: spans[4]})
		case len(spans) == 3:
			prices = append(prices, types.UnitPrice{Price: spans[1], Quantity: spans[2]})
		}
	})
	return prices
}

func (l *LoblawAdapter) productFromTracking(raw string) (*types.Product, error) {
	var entries []loblawTrackingData
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode tracking data: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty tracking data")
	}
	data := entries[0]

	product := &types.Product{
		SKU:          data.SKU.String(),
		Name:         data.Name.String(),
		Brand:        data.Brand.String(),
		Catalog:      data.Catalog.String(),
		Vendor:       data.Vendor.String(),
		DealBadge:    data.DealBadge.String(),
		LoyaltyBadge: data.LoyaltyBadge.String(),
		TextBadge:    data.TextBadge.String(),
		Categories:   []string{},
		UnitPrices:   []types.UnitPrice{},
	}
	if data.Price != "" {
		price, err := parsePrice(data.Price.String())
		if err != nil {
			l.logger.Warnf("Product %s: %v", product.SKU, err)
		} else {
			product.Price = price
		}
	}
	return product, nil
}

// GetProductInfo scrapes the product details page at link
func (l *LoblawAdapter) GetProductInfo(ctx context.Context, link string) (*types.Product, error) {
	product, _, err := l.GetProductPage(ctx, link)
	return product, err
}

// GetProductPage scrapes the product details page at link and also returns
// the rendered HTML for archiving.
func (l *LoblawAdapter) GetProductPage(ctx context.Context, link string) (*types.Product, string, error) {
	var (
		product *types.Product
		content string
	)
	err := l.withSession(ctx, func(br types.Browser) error {
		if err := l.navigateIfNeeded(ctx, br, link); err != nil {
			return err
		}
		doc, err := l.waitForSelector(ctx, br, loblawTracking)
		if err != nil {
			return fmt.Errorf("product page %s: %w", link, err)
		}

		raw, err := l.ExtractAttribute(doc, loblawTracking, loblawTrackingAttr)
		if err != nil {
			return fmt.Errorf("product page %s: %w", link, err)
		}
		product, err = l.productFromTracking(raw)
		if err != nil {
			return fmt.Errorf("product page %s: %w", link, err)
		}

		product.Link = link
		product.Categories = linkCategories(link)
		// both are optional: loose produce has no package size, packaged goods no average weight
		product.PackageSize, _ = l.ExtractText(doc, loblawPackageSize)
		product.AverageWeight, _ = l.ExtractText(doc, loblawAverageWeight)
		doc.Find(loblawComparisonPrice).Each(func(i int, s *goquery.Selection) {
			product.UnitPrices = append(product.UnitPrices, splitUnitPrice(s.Text()))
		})
		if src, err := l.ExtractAttribute(doc, loblawProductImage, "src"); err == nil {
			product.ImageURL = l.resolveLink(src)
		}

		content, err = doc.Html()
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return product, content, nil
}

// AddProductToCurrentOrder sets the cart quantity of the product at link.
// An existing cart entry is cleared first so the result is quantity, not
// quantity plus whatever was already there.
func (l *LoblawAdapter) AddProductToCurrentOrder(ctx context.Context, link string, quantity int) error {
	return l.withSession(ctx, func(br types.Browser) error {
		if err := br.Navigate(ctx, link); err != nil {
			return err
		}
		if err := br.Evaluate(ctx, "window.scrollTo(0, 0);", nil); err != nil {
			return err
		}

		doc, err := l.waitForSelector(ctx, br, loblawDetails)
		if err != nil {
			return fmt.Errorf("product details for %s: %w", link, err)
		}

		if doc.Find(loblawQuantityInput).Length() > 0 {
			l.logger.Debugf("Clearing existing cart quantity for %s", link)
			if err := l.setQuantity(ctx, br, "0"); err != nil {
				return err
			}
		}

		if err := br.Click(ctx, loblawAddToCart); err != nil {
			return err
		}
		if err := l.settle(ctx); err != nil {
			return err
		}

		if err := l.setQuantity(ctx, br, strconv.Itoa(quantity)); err != nil {
			return err
		}
		l.logger.Infof("Set quantity %d for %s", quantity, link)
		return nil
	})
}

func (l *LoblawAdapter) setQuantity(ctx context.Context, br types.Browser, value string) error {
	if err := br.SelectAll(ctx, loblawQuantityInput); err != nil {
		return err
	}
	return br.SendKeys(ctx, loblawQuantityInput, value+kb.Enter)
}

// GetPastOrdersList returns the summaries on the order-history page
func (l *LoblawAdapter) GetPastOrdersList(ctx context.Context) ([]types.OrderSummary, error) {
	var orders []types.OrderSummary
	err := l.withSession(ctx, func(br types.Browser) error {
		if err := br.Navigate(ctx, l.baseURL+"/account/order-history"); err != nil {
			return err
		}
		doc, err := l.waitForSelector(ctx, br, loblawOrderRow)
		if err != nil {
			return fmt.Errorf("order history: %w", err)
		}

		doc.Find(loblawOrderRow).Each(func(i int, row *goquery.Selection) {
			href, _ := row.Attr("href")
			link := l.resolveLink(href)
			orders = append(orders, types.OrderSummary{
				OrderNumber: path.Base(strings.TrimRight(link, "/")),
				Date:        strings.TrimSpace(row.Find(loblawOrderDate).First().Text()),
				Price:       strings.TrimSpace(row.Find(loblawOrderPrice).First().Text()),
				Link:        link,
			})
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrderItems returns the line items of one past order
func (l *LoblawAdapter) GetOrderItems(ctx context.Context, order types.OrderSummary) ([]types.OrderItem, error) {
	var items []types.OrderItem
	err := l.withSession(ctx, func(br types.Browser) error {
		if err := br.Navigate(ctx, order.Link); err != nil {
			return err
		}
		doc, err := l.waitForSelector(ctx, br, loblawOrderProduct)
		if err != nil {
			return fmt.Errorf("order %s: %w", order.OrderNumber, err)
		}

		doc.Find(loblawOrderProduct).Each(func(i int, row *goquery.Selection) {
			item := types.OrderItem{
				Description: strings.TrimSpace(row.Find(loblawOrderProductName).First().Text()),
				ProductSKU:  strings.TrimSpace(row.Find(loblawOrderProductCode).First().Text()),
				Display:     strings.TrimSpace(row.Find(loblawOrderProductQty).First().Text()),
				OrderNumber: order.OrderNumber,
				Date:        order.Date,
			}
			price, err := parsePrice(row.Find(loblawOrderProductCost).First().Text())
			if err != nil {
				l.logger.Warnf("Order %s item %q: %v", order.OrderNumber, item.Description, err)
			}
			item.Price = price
			items = append(items, item)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetItemizedOrderHistory syncs new orders into the local dataset and returns
// the full line-item history
func (l *LoblawAdapter) GetItemizedOrderHistory(ctx context.Context) ([]types.OrderItem, error) {
	return l.syncOrderHistory(ctx, l)
}

// AddProductToDatabase scrapes and stores the product at link unless it is already known
func (l *LoblawAdapter) AddProductToDatabase(ctx context.Context, link string) error {
	return l.addProductToDatabase(ctx, l, link)
}

// MapSKUToLink finds the product link for an order-history SKU
func (l *LoblawAdapter) MapSKUToLink(ctx context.Context, sku string) (string, error) {
	return l.mapSKUToLink(ctx, l, sku)
}

// GetPickupLocations lists the stores offering pickup near postalCode
func (l *LoblawAdapter) GetPickupLocations(ctx context.Context, postalCode string) ([]types.PickupLocation, error) {
	var locations []types.PickupLocation
	err := l.withSession(ctx, func(br types.Browser) error {
		var err error
		locations, err = l.listLocations(ctx, br, loblawSlots, postalCode)
		return err
	})
	return locations, err
}

// GetPickupSlots selects a pickup store and reads its whole slot picker
func (l *LoblawAdapter) GetPickupSlots(ctx context.Context, postalCode string, location string) (*types.SlotTable, error) {
	var table *types.SlotTable
	err := l.withSession(ctx, func(br types.Browser) error {
		var err error
		table, err = l.collectSlots(ctx, br, loblawSlots, postalCode, location)
		return err
	})
	return table, err
}

// IsSignedIn reports whether the session's browser profile is logged in
func (l *LoblawAdapter) IsSignedIn(ctx context.Context) (bool, error) {
	var signedIn bool
	err := l.withSession(ctx, func(br types.Browser) error {
		if err := br.Navigate(ctx, l.baseURL); err != nil {
			return err
		}
		doc, err := l.waitForDoc(ctx, br, func(doc *goquery.Document) (bool, error) {
			return doc.Find(loblawSignedIn).Length() > 0 || doc.Find(loblawSignedOut).Length() > 0, nil
		})
		if err != nil {
			return fmt.Errorf("account menu: %w", err)
		}
		signedIn = doc.Find(loblawSignedIn).Length() > 0
		return nil
	})
	return signedIn, err
}

// SignIn logs in with the configured account
func (l *LoblawAdapter) SignIn(ctx context.Context, user, password string) error {
	return l.withSession(ctx, func(br types.Browser) error {
		if err := br.Navigate(ctx, l.baseURL+"/sign-in"); err != nil {
			return err
		}
		if _, err := l.waitForSelector(ctx, br, loblawAccessCode); err != nil {
			return err
		}
		if err := br.SendKeys(ctx, loblawAccessCode, user); err != nil {
			return err
		}
		if err := br.SendKeys(ctx, loblawPassword, password); err != nil {
			return err
		}
		if err := br.Click(ctx, loblawLoginButton); err != nil {
			return err
		}
		l.logger.Infof("Submitted sign-in for %s", l.storeName)
		return l.settle(ctx)
	})
}

var _ types.RetailerAdapter = (*LoblawAdapter)(nil)
