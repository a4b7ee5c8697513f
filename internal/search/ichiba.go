// Package search implements the product discovery stage against the
// marketplace's item-search API, producing the finite ordered product list
// the review pipeline consumes.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/kshimojo/rakulens/internal/config"
	"github.com/kshimojo/rakulens/internal/fetcher"
	"github.com/kshimojo/rakulens/internal/types"
)

// Client queries the item-search API.
type Client struct {
	fetcher fetcher.Fetcher
	cfg     *config.SearchConfig
	logger  *slog.Logger
}

// NewClient creates a search client fetching through f.
func NewClient(f fetcher.Fetcher, cfg *config.SearchConfig, logger *slog.Logger) *Client {
	return &Client{
		fetcher: f,
		cfg:     cfg,
		logger:  logger.With("component", "search"),
	}
}

// searchResponse is the item-search API's JSON shape. Each hit wraps the
// product record in an Item envelope.
type searchResponse struct {
	Items []struct {
		Item struct {
			ItemName      string      `json:"itemName"`
			ItemCode      string      `json:"itemCode"`
			ItemURL       string      `json:"itemUrl"`
			ItemPrice     json.Number `json:"itemPrice"`
			ReviewCount   int         `json:"reviewCount"`
			ReviewAverage float64     `json:"reviewAverage"`
		} `json:"Item"`
	} `json:"Items"`
	Count int `json:"count"`
	Page  int `json:"page"`
}

// Search returns up to cfg.Hits products matching the keyword, in the
// marketplace's result order.
func (c *Client) Search(ctx context.Context, keyword string) ([]types.Product, error) {
	if keyword == "" {
		return nil, fmt.Errorf("search keyword is empty")
	}
	if c.cfg.AppID == "" {
		return nil, fmt.Errorf("search.app_id is not configured")
	}

	result, err := c.fetcher.Fetch(ctx, c.requestURL(keyword))
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal([]byte(result.Body), &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	products := make([]types.Product, 0, len(resp.Items))
	for _, hit := range resp.Items {
		price, _ := strconv.Atoi(hit.Item.ItemPrice.String())
		products = append(products, types.Product{
			Name:          hit.Item.ItemName,
			Code:          hit.Item.ItemCode,
			URL:           hit.Item.ItemURL,
			Price:         price,
			ReviewCount:   hit.Item.ReviewCount,
			ReviewAverage: hit.Item.ReviewAverage,
		})
	}

	c.logger.Info("search complete", "keyword", keyword, "hits", len(products), "total", resp.Count)
	return products, nil
}

// requestURL builds the search API request for a keyword.
func (c *Client) requestURL(keyword string) string {
	q := url.Values{}
	q.Set("applicationId", c.cfg.AppID)
	q.Set("keyword", keyword)
	q.Set("hits", strconv.Itoa(c.cfg.Hits))
	q.Set("format", "json")
	q.Set("postageFlag", "1")
	if c.cfg.MinPrice > 0 {
		q.Set("minPrice", strconv.Itoa(c.cfg.MinPrice))
	}
	if c.cfg.MaxPrice > 0 {
		q.Set("maxPrice", strconv.Itoa(c.cfg.MaxPrice))
	}
	if c.cfg.ExcludeKeyword != "" {
		q.Set("NGKeyword", c.cfg.ExcludeKeyword)
	}
	return c.cfg.Endpoint + "?" + q.Encode()
}
