package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"grocery-helpers/internal/types"
)

// Source is the scraping side of a retailer the engine pulls records from
type Source interface {
	GetPastOrdersList(ctx context.Context) ([]types.OrderSummary, error)
	GetOrderItems(ctx context.Context, order types.OrderSummary) ([]types.OrderItem, error)
	Search(ctx context.Context, term string) ([]types.Product, error)
	GetProductPage(ctx context.Context, link string) (*types.Product, string, error)
}

// Downloader fetches a remote asset to a local file
type Downloader interface {
	Download(ctx context.Context, url string, path string) error
}

// skuSuffixLen is the length of the variant/checksum suffix order history
// appends to catalog SKUs.
const skuSuffixLen = 3

// Engine merges scraped orders and products into one retailer's dataset:
//
//	<dir>/orders.csv
//	<dir>/products/products.csv
//	<dir>/products/<SKU>/<name>.html and <name>.<ext>
type Engine struct {
	dir        string
	source     Source
	downloader Downloader
	logger     types.Logger
}

// NewEngine creates an engine for the dataset rooted at dir
func NewEngine(dir string, source Source, downloader Downloader, logger types.Logger) *Engine {
	return &Engine{
		dir:        dir,
		source:     source,
		downloader: downloader,
		logger:     logger,
	}
}

func (e *Engine) productsPath() string {
	return filepath.Join(e.dir, "products", "products.csv")
}

func (e *Engine) ordersPath() string {
	return filepath.Join(e.dir, "orders.csv")
}

// Products returns the persisted product dataset
func (e *Engine) Products() ([]types.Product, error) {
	dataset, err := loadProducts(e.productsPath())
	if err != nil {
		return nil, err
	}
	return dataset.products, nil
}

// Orders returns the persisted order line items
func (e *Engine) Orders() ([]types.OrderItem, error) {
	orders, err := loadOrders(e.ordersPath())
	if err != nil {
		return nil, err
	}
	return lineItems(orders), nil
}

// SyncOrderHistory ingests every past order not yet in orders.csv, adding
// unknown products along the way, and returns the full line-item history.
// orders.csv is rewritten after each order. Per-order and per-product
// failures are logged and skipped.
func (e *Engine) SyncOrderHistory(ctx context.Context) ([]types.OrderItem, error) {
	lock, err := lockDataset(e.dir)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	summaries, err := e.source.GetPastOrdersList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list past orders: %w", err)
	}

	orders, err := loadOrders(e.ordersPath())
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool)
	for _, item := range orders {
		known[item.OrderNumber] = true
	}

	products, err := loadProducts(e.productsPath())
	if err != nil {
		return nil, err
	}
	unresolved := make(map[string]bool)

	for _, summary := range summaries {
		if known[summary.OrderNumber] {
			e.logger.Debugf("Order %s already synced", summary.OrderNumber)
			continue
		}

		e.logger.Infof("Syncing order %s (%s)", summary.OrderNumber, summary.Date)
		items, err := e.source.GetOrderItems(ctx, summary)
		if err != nil {
			if isFatal(ctx, err) {
				return nil, err
			}
			e.logger.Warnf("Skipping order %s: %v", summary.OrderNumber, err)
			continue
		}

		for _, item := range items {
			if _, ok := products.get(item.ProductSKU); ok || unresolved[item.ProductSKU] {
				continue
			}
			if err := e.addBySKU(ctx, products, item.ProductSKU); err != nil {
				if isFatal(ctx, err) {
					return nil, err
				}
				e.logger.Warnf("Couldn't find sku %s: %v", item.ProductSKU, err)
				unresolved[item.ProductSKU] = true
			}
		}

		for i := range items {
			var productKg *float64
			if product, ok := products.get(items[i].ProductSKU); ok {
				productKg = product.Kg
			}
			items[i].Quantity, items[i].Kg = NormalizeQuantity(items[i].Display, items[i].Price, productKg)
		}

		if len(items) == 0 {
			e.logger.Warnf("Order %s has no line items", summary.OrderNumber)
			items = append(items, emptyOrder(summary))
		}
		orders = append(orders, items...)
		if err := saveOrders(e.ordersPath(), orders); err != nil {
			return nil, fmt.Errorf("failed to save orders: %w", err)
		}
		known[summary.OrderNumber] = true
	}

	return lineItems(orders), nil
}

func (e *Engine) addBySKU(ctx context.Context, products *productDataset, sku string) error {
	link, err := e.ResolveSKU(ctx, sku)
	if err != nil {
		return err
	}
	return e.addProduct(ctx, products, link)
}

// ResolveSKU finds the product link for an order-history SKU by searching for
// the SKU without its suffix. Anything but exactly one result fails, with
// *types.AmbiguousMatchError when the search returned several.
func (e *Engine) ResolveSKU(ctx context.Context, sku string) (string, error) {
	term := sku
	if len(sku) > skuSuffixLen {
		term = sku[:len(sku)-skuSuffixLen]
	}

	results, err := e.source.Search(ctx, term)
	if err != nil {
		return "", err
	}
	if len(results) != 1 {
		return "", &types.AmbiguousMatchError{Term: term, Matches: len(results)}
	}
	return results[0].Link, nil
}

// AddProduct scrapes the product at link into the dataset. Known links and
// SKUs are left alone.
func (e *Engine) AddProduct(ctx context.Context, link string) error {
	lock, err := lockDataset(e.dir)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	products, err := loadProducts(e.productsPath())
	if err != nil {
		return err
	}
	return e.addProduct(ctx, products, link)
}

// addProduct expects the dataset lock to be held
func (e *Engine) addProduct(ctx context.Context, products *productDataset, link string) error {
	if link == "" {
		return fmt.Errorf("empty product link")
	}
	if products.hasLink(link) {
		e.logger.Debugf("Product %s already in dataset", link)
		return nil
	}

	product, content, err := e.source.GetProductPage(ctx, link)
	if err != nil {
		return err
	}
	if _, ok := products.get(product.SKU); ok {
		e.logger.Debugf("Product %s already in dataset", product.SKU)
		return nil
	}

	if err := e.snapshot(ctx, product, content); err != nil {
		return err
	}

	product.Kg = PackageKg(product.PackageSize, product.AverageWeight)
	products.add(*product)
	if err := saveProducts(e.productsPath(), products); err != nil {
		return fmt.Errorf("failed to save products: %w", err)
	}
	e.logger.Infof("Added product %s (%s)", product.SKU, product.Name)
	return nil
}

// snapshot stores the page HTML and the product image under products/<SKU>.
// The directory only appears once both files are written, so its existence
// marks a complete snapshot.
func (e *Engine) snapshot(ctx context.Context, product *types.Product, content string) error {
	dir := filepath.Join(e.dir, "products", safeName(product.SKU))
	if _, err := os.Stat(dir); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("failed to create products directory: %w", err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(dir), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	defer os.RemoveAll(staging)

	name := safeName(product.Name)
	if name == "" {
		name = safeName(product.SKU)
	}
	if err := os.WriteFile(filepath.Join(staging, name+".html"), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write page snapshot: %w", err)
	}

	if product.ImageURL != "" && e.downloader != nil {
		imagePath := filepath.Join(staging, name+imageExt(product.ImageURL))
		if err := e.downloader.Download(ctx, product.ImageURL, imagePath); err != nil {
			return fmt.Errorf("failed to download image: %w", err)
		}
	}

	return os.Rename(staging, dir)
}

func imageExt(imageURL string) string {
	if u, err := url.Parse(imageURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return ext
		}
	}
	return ".jpg"
}

// safeName makes a product name or SKU usable as a single path element
func safeName(s string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", string(os.PathSeparator), "-")
	return strings.TrimSpace(replacer.Replace(s))
}

// isFatal reports errors that end a batch instead of skipping one item. A
// deadline inside err alone is not fatal: browser actions carry their own
// timeouts, only the caller's ctx ends the batch.
func isFatal(ctx context.Context, err error) bool {
	var sessionErr *types.SessionError
	return ctx.Err() != nil || errors.As(err, &sessionErr)
}

// emptyOrder is the orders.csv row recording an order without line items,
// so later syncs do not fetch it again
func emptyOrder(summary types.OrderSummary) types.OrderItem {
	return types.OrderItem{OrderNumber: summary.OrderNumber, Date: summary.Date}
}

func lineItems(orders []types.OrderItem) []types.OrderItem {
	items := make([]types.OrderItem, 0, len(orders))
	for _, item := range orders {
		if item.ProductSKU == "" && item.Description == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}
