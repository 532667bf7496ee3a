package flyers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"grocery-helpers/internal/types"

	"github.com/go-resty/resty/v2"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Item is one flyer item as returned by the item endpoint. Numbers are kept
// as json.Number so ids survive the trip into CSV unchanged.
type Item map[string]interface{}

// SearchResult is the search endpoint response
type SearchResult struct {
	Merchants []Merchant    `json:"merchants"`
	Flyers    []FlyerRef    `json:"flyers"`
	Items     []ItemSummary `json:"items"`
}

// Merchant is a retailer the search matched
type Merchant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FlyerRef is a current flyer of a matched merchant
type FlyerRef struct {
	ID       int64  `json:"id"`
	Merchant string `json:"merchant"`
	ValidTo  string `json:"valid_to"`
}

// ItemSummary links a search hit to its flyer
type ItemSummary struct {
	FlyerItemID int64  `json:"flyer_item_id"`
	FlyerID     int64  `json:"flyer_id"`
	Name        string `json:"name"`
}

// Client talks to the flyer aggregator backend
type Client struct {
	client *resty.Client
	logger types.Logger
}

// NewClient creates a client for config.FlyerBaseURL
func NewClient(config *types.Config, logger types.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(config.FlyerBaseURL)
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept", "application/json")
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(config.MaxRetries)
	client.SetRetryWaitTime(config.RequestDelay)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		return err != nil || res.StatusCode() >= 500
	})

	return &Client{client: client, logger: logger}
}

// Search queries flyers and flyer items for query near postalCode
func (c *Client) Search(ctx context.Context, query, postalCode string) (*SearchResult, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("postal_code", postalCode).
		Get("/items/search")
	if err != nil {
		return nil, fmt.Errorf("flyer search failed: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("flyer search failed: unexpected status code: %d", res.StatusCode())
	}

	var result SearchResult
	if err := json.Unmarshal(res.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode flyer search: %w", err)
	}
	c.logger.Debugf("Flyer search %q found %d flyers and %d items", query, len(result.Flyers), len(result.Items))
	return &result, nil
}

// Item fetches the detail record of one flyer item
func (c *Client) Item(ctx context.Context, id int64) (Item, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Get("/items/{id}")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flyer item %d: %w", id, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("failed to fetch flyer item %d: unexpected status code: %d", id, res.StatusCode())
	}

	var envelope struct {
		Item Item `json:"item"`
	}
	if err := decodeNumbers(res.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode flyer item %d: %w", id, err)
	}
	if envelope.Item == nil {
		return nil, fmt.Errorf("flyer item %d: response has no item", id)
	}
	return envelope.Item, nil
}

func decodeNumbers(data []byte, v interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(v)
}
