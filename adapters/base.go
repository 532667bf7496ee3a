package adapters

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"grocery-helpers/catalog"
	"grocery-helpers/internal/types"
	"grocery-helpers/utils"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// AcquireFunc starts a new browser session for one logical operation
type AcquireFunc func(ctx context.Context) (types.Session, error)

// BaseAdapter provides common functionality for retailer adapters.
// It owns the scoped-session discipline: every public operation of a variant
// runs inside withSession, which reuses the active session when there is one
// and otherwise acquires a fresh session and releases it on every exit path.
type BaseAdapter struct {
	storeName  string
	baseURL    string
	config     *types.Config
	logger     types.Logger
	httpClient *utils.HTTPClient // Plain HTTP client for product image downloads
	acquire    AcquireFunc

	// active is the session of the operation in progress; nil between operations.
	active types.Browser
}

// NewBaseAdapter creates a base adapter for one retailer banner
func NewBaseAdapter(storeName, baseURL string, config *types.Config, logger types.Logger) *BaseAdapter {
	b := &BaseAdapter{
		storeName:  storeName,
		baseURL:    strings.TrimRight(baseURL, "/"),
		config:     config,
		logger:     logger,
		httpClient: utils.NewHTTPClient(config, logger),
	}
	b.acquire = func(ctx context.Context) (types.Session, error) {
		return utils.AcquireSession(ctx, config, logger)
	}
	return b
}

// GetStoreName returns the retailer's display name
func (b *BaseAdapter) GetStoreName() string {
	return b.storeName
}

// BaseURL returns the retailer's site root
func (b *BaseAdapter) BaseURL() string {
	return b.baseURL
}

// Config returns the config field of the BaseAdapter
func (b *BaseAdapter) Config() *types.Config {
	return b.config
}

// SetAcquireFunc replaces the session factory
func (b *BaseAdapter) SetAcquireFunc(acquire AcquireFunc) {
	b.acquire = acquire
}

// UseSession makes following operations run on a caller-owned browser.
// Passing nil returns the adapter to acquiring its own sessions.
func (b *BaseAdapter) UseSession(session types.Browser) {
	b.active = session
}

// withSession runs fn with the active browser. When none is active a session
// is acquired for the duration of fn and released afterwards, whatever fn
// returns. Nested calls share the outer session.
func (b *BaseAdapter) withSession(ctx context.Context, fn func(br types.Browser) error) error {
	if b.active != nil {
		return fn(b.active)
	}

	session, err := b.acquire(ctx)
	if err != nil {
		return err
	}
	b.active = session
	defer func() {
		b.active = nil
		if err := session.Release(); err != nil {
			b.logger.Warnf("Failed to release browser session: %v", err)
		}
	}()

	return fn(session)
}

// ParseHTML parses HTML content into a goquery document
func (b *BaseAdapter) ParseHTML(content string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// ExtractText extracts text from an element using a CSS selector
func (b *BaseAdapter) ExtractText(doc *goquery.Document, selector string) (string, error) {
	element := doc.Find(selector)
	if element.Length() == 0 {
		return "", fmt.Errorf("element not found with selector: %s", selector)
	}

	return strings.TrimSpace(element.First().Text()), nil
}

// ExtractAttribute extracts an attribute value from an element
func (b *BaseAdapter) ExtractAttribute(doc *goquery.Document, selector string, attribute string) (string, error) {
	element := doc.Find(selector)
	if element.Length() == 0 {
		return "", fmt.Errorf("element not found with selector: %s", selector)
	}

	value, exists := element.First().Attr(attribute)
	if !exists {
		return "", fmt.Errorf("attribute %s not found on element %s", attribute, selector)
	}

	return value, nil
}

// waitForDoc polls the rendered page until ready accepts it. ready may return
// an error to stop waiting early (for example on a "no results" marker).
func (b *BaseAdapter) waitForDoc(ctx context.Context, br types.Browser, ready func(doc *goquery.Document) (bool, error)) (*goquery.Document, error) {
	return utils.Poll(ctx, b.config.PollTimeout, b.config.PollInterval, func(ctx context.Context) (*goquery.Document, bool, error) {
		content, err := br.HTML(ctx)
		if err != nil {
			return nil, false, err
		}
		doc, err := b.ParseHTML(content)
		if err != nil {
			return nil, false, err
		}
		ok, err := ready(doc)
		if err != nil || !ok {
			return nil, false, err
		}
		return doc, true, nil
	})
}

// waitForSelector waits until selector matches at least one element
func (b *BaseAdapter) waitForSelector(ctx context.Context, br types.Browser, selector string) (*goquery.Document, error) {
	doc, err := b.waitForDoc(ctx, br, func(doc *goquery.Document) (bool, error) {
		return doc.Find(selector).Length() > 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return doc, nil
}

// navigateIfNeeded loads link unless the browser is already showing it
func (b *BaseAdapter) navigateIfNeeded(ctx context.Context, br types.Browser, link string) error {
	current, err := br.CurrentURL(ctx)
	if err == nil && current == link {
		return nil
	}
	return br.Navigate(ctx, link)
}

// settle pauses after a UI action that triggers client-side re-rendering
func (b *BaseAdapter) settle(ctx context.Context) error {
	if b.config.SettleDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(b.config.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resolveLink converts relative hrefs to absolute URLs on the retailer's site
func (b *BaseAdapter) resolveLink(href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "/"):
		return b.baseURL + href
	default:
		return b.baseURL + "/" + href
	}
}

// linkCategories derives the category path from a product URL: the decoded
// path segments after the department, without the trailing "p/<code>".
// https://www.loblaws.ca/Food/Dairy-and-Eggs/Milk/p/20658152_EA -> [Dairy and Eggs, Milk]
func linkCategories(link string) []string {
	decoded, err := url.PathUnescape(link)
	if err != nil {
		decoded = link
	}
	parts := strings.Split(strings.ReplaceAll(decoded, "-", " "), "/")
	if len(parts) < 7 {
		return []string{}
	}
	return parts[4 : len(parts)-2]
}

// datasetDir is where the catalog engine keeps this retailer's files
func (b *BaseAdapter) datasetDir() string {
	return filepath.Join(b.config.DataDir, b.storeName)
}

func (b *BaseAdapter) engine(src catalog.Source) *catalog.Engine {
	return catalog.NewEngine(b.datasetDir(), src, b.httpClient, b.logger)
}

// syncOrderHistory runs the catalog sync on one session shared by every
// page the sync visits.
func (b *BaseAdapter) syncOrderHistory(ctx context.Context, src catalog.Source) ([]types.OrderItem, error) {
	var items []types.OrderItem
	err := b.withSession(ctx, func(types.Browser) error {
		var err error
		items, err = b.engine(src).SyncOrderHistory(ctx)
		return err
	})
	return items, err
}

func (b *BaseAdapter) addProductToDatabase(ctx context.Context, src catalog.Source, link string) error {
	return b.withSession(ctx, func(types.Browser) error {
		return b.engine(src).AddProduct(ctx, link)
	})
}

func (b *BaseAdapter) mapSKUToLink(ctx context.Context, src catalog.Source, sku string) (string, error) {
	var link string
	err := b.withSession(ctx, func(types.Browser) error {
		var err error
		link, err = b.engine(src).ResolveSKU(ctx, sku)
		return err
	})
	return link, err
}

// Close cleans up resources
func (b *BaseAdapter) Close() {
	if b.httpClient != nil {
		b.httpClient.Close()
	}
}
