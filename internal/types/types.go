package types

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UnitPrice is one comparison-price entry shown next to a product, e.g. ("$1.10", "100g").
type UnitPrice struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// Product represents one catalog entry scraped from a retailer
type Product struct {
	SKU                 string          `json:"sku"`
	Name                string          `json:"name"`
	Brand               string          `json:"brand"`
	Description         string          `json:"description,omitempty"`
	Price               decimal.Decimal `json:"price"`
	PackageSize         string          `json:"package_size,omitempty"`
	AverageWeight       string          `json:"average_weight,omitempty"`
	Kg                  *float64        `json:"kg,omitempty"`
	Categories          []string        `json:"categories"`
	UnitPrices          []UnitPrice     `json:"unit_prices"`
	Link                string          `json:"link"`
	ImageURL            string          `json:"image_url,omitempty"`
	PreviouslyPurchased bool            `json:"previously_purchased"`

	// Tracking fields embedded by the Loblaw-family sites.
	Catalog      string `json:"catalog,omitempty"`
	Vendor       string `json:"vendor,omitempty"`
	DealBadge    string `json:"deal_badge,omitempty"`
	LoyaltyBadge string `json:"loyalty_badge,omitempty"`
	TextBadge    string `json:"text_badge,omitempty"`

	// Identifiers holds the field/value pairs of Walmart's "Product Identifiers" block.
	Identifiers map[string]string `json:"identifiers,omitempty"`
}

// OrderSummary is one row of a retailer's past-orders list
type OrderSummary struct {
	OrderNumber string `json:"order_number"`
	Date        string `json:"date"`
	Price       string `json:"price"`
	Link        string `json:"link"`
}

// OrderItem is one line item of a past order. Quantity and Kg are nil when the
// display string could not be normalized.
type OrderItem struct {
	Description string          `json:"description"`
	ProductSKU  string          `json:"product_sku"`
	Display     string          `json:"-"`
	Quantity    *float64        `json:"quantity"`
	Kg          *float64        `json:"kg"`
	Price       decimal.Decimal `json:"price"`
	OrderNumber string          `json:"order_number"`
	Date        string          `json:"date"`
}

// PickupLocation is a store offering in-store pickup
type PickupLocation struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Selected bool   `json:"selected"`
}

// Config holds the configuration shared by adapters, the sync engine and the flyer service
type Config struct {
	PollTimeout   time.Duration
	PollInterval  time.Duration
	SettleDelay   time.Duration
	ActionTimeout time.Duration
	MaxSlotPages  int

	Headless   bool
	ProfileDir string
	ChromePath string
	UserAgent  string

	DataDir    string
	PostalCode string
	User       string
	Password   string

	RequestDelay time.Duration
	MaxRetries   int
	Timeout      time.Duration

	FlyerBaseURL   string
	FlyerCachePath string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		PollTimeout:   10 * time.Second,
		PollInterval:  250 * time.Millisecond,
		SettleDelay:   1 * time.Second,
		ActionTimeout: 30 * time.Second,
		MaxSlotPages:  20,
		Headless:      true,
		DataDir:       ".",
		RequestDelay:  500 * time.Millisecond,
		MaxRetries:    3,
		Timeout:       30 * time.Second,
		FlyerBaseURL:  "https://backflipp.wishabi.com/flipp",
	}
}

// Browser is the browser-automation capability the adapters consume. Element
// queries are answered by parsing HTML() with goquery.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	// SelectAll focuses the element and selects its whole content (Ctrl+A).
	SelectAll(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector string, keys string) error
	Evaluate(ctx context.Context, script string, res interface{}) error
}

// Session is a browser instance owned by one logical operation.
// Release must be safe to call more than once.
type Session interface {
	Browser
	Release() error
}

// RetailerAdapter defines the capability set every retailer variant implements
type RetailerAdapter interface {
	// GetStoreName returns the retailer's display name
	GetStoreName() string

	// UseSession makes every following call run on a caller-owned session.
	// The adapter never releases a borrowed session.
	UseSession(session Browser)

	Search(ctx context.Context, term string) ([]Product, error)
	GetProductInfo(ctx context.Context, link string) (*Product, error)
	AddProductToCurrentOrder(ctx context.Context, link string, quantity int) error
	GetPastOrdersList(ctx context.Context) ([]OrderSummary, error)

	// GetItemizedOrderHistory syncs new orders into the local dataset and
	// returns the full persisted line-item history.
	GetItemizedOrderHistory(ctx context.Context) ([]OrderItem, error)
	AddProductToDatabase(ctx context.Context, link string) error
	MapSKUToLink(ctx context.Context, sku string) (string, error)

	GetPickupLocations(ctx context.Context, postalCode string) ([]PickupLocation, error)
	GetPickupSlots(ctx context.Context, postalCode string, location string) (*SlotTable, error)
	IsSignedIn(ctx context.Context) (bool, error)

	Close()
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
