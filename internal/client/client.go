// Package client is the HTTP client for the order API.
//
// Client implements reconciler.OrderService and reconciler.MenuService, so a
// reconciler engine can be pointed at a running order API directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/papapizza/internal/catalog"
	"github.com/roach88/papapizza/internal/order"
)

// DefaultBaseURL is the order API address used when none is configured.
const DefaultBaseURL = "http://localhost:1984"

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 4 << 20

// Client talks to one order API.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a client for baseURL. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:    u,
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// FetchMenu returns the menu catalog.
func (c *Client) FetchMenu(ctx context.Context) (*catalog.Catalog, error) {
	var menu *catalog.Catalog
	err := c.do(ctx, "fetch menu", http.MethodGet, "/api/menu", nil, func(r io.Reader) error {
		var err error
		menu, err = catalog.DecodeMenu(r)
		return err
	})
	return menu, err
}

// FetchOrder returns the current order.
func (c *Client) FetchOrder(ctx context.Context) (order.Order, error) {
	return c.orderCall(ctx, "fetch order", http.MethodGet, "/api/current-order", nil)
}

// UpsertItem sets the quantity of itemID and returns the updated order.
func (c *Client) UpsertItem(ctx context.Context, itemID string, qty int) (order.Order, error) {
	body := map[string]int{"qty": qty}
	return c.orderCall(ctx, "upsert item", http.MethodPut, itemPath(itemID), body)
}

// RemoveItem deletes itemID from the order and returns the updated order.
func (c *Client) RemoveItem(ctx context.Context, itemID string) (order.Order, error) {
	return c.orderCall(ctx, "remove item", http.MethodDelete, itemPath(itemID), nil)
}

// ClearOrder empties the current order.
func (c *Client) ClearOrder(ctx context.Context) (order.Order, error) {
	return c.orderCall(ctx, "clear order", http.MethodDelete, "/api/current-order", nil)
}

// Commit places the current order.
func (c *Client) Commit(ctx context.Context) (order.Confirmation, error) {
	var conf order.Confirmation
	err := c.do(ctx, "commit", http.MethodPost, "/api/current-order/commit", nil, func(r io.Reader) error {
		var err error
		conf, err = order.DecodeConfirmation(r)
		return err
	})
	return conf, err
}

// FetchSummary returns the sales summary.
func (c *Client) FetchSummary(ctx context.Context) (order.Summary, error) {
	var s order.Summary
	err := c.do(ctx, "fetch summary", http.MethodGet, "/api/summary", nil, func(r io.Reader) error {
		var err error
		s, err = order.DecodeSummary(r)
		return err
	})
	return s, err
}

// FetchOrders returns every committed order.
func (c *Client) FetchOrders(ctx context.Context) ([]order.PlacedOrder, error) {
	var orders []order.PlacedOrder
	err := c.do(ctx, "fetch orders", http.MethodGet, "/api/summary/orders-list", nil, func(r io.Reader) error {
		var err error
		orders, err = order.DecodeOrders(r)
		return err
	})
	return orders, err
}

// FetchDailySummary returns revenue per UTC date.
func (c *Client) FetchDailySummary(ctx context.Context) ([]order.DailySummary, error) {
	var days []order.DailySummary
	err := c.do(ctx, "fetch daily summary", http.MethodGet, "/api/summary/daily", nil, func(r io.Reader) error {
		var err error
		days, err = order.DecodeDailySummary(r)
		return err
	})
	return days, err
}

// Health checks that the order API is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/api/health", nil, nil)
}

func itemPath(itemID string) string {
	return "/api/current-order/items/" + url.PathEscape(itemID)
}

func (c *Client) orderCall(ctx context.Context, op, method, path string, body any) (order.Order, error) {
	var o order.Order
	err := c.do(ctx, op, method, path, body, func(r io.Reader) error {
		var err error
		o, err = order.DecodeOrder(r)
		return err
	})
	return o, err
}

// do performs one request. Non-2xx responses become *order.APIError; decode
// is skipped when nil.
func (c *Client) do(ctx context.Context, op, method, path string, body any, decode func(io.Reader) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	slog.Debug("order api call",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	r := io.LimitReader(resp.Body, maxBody)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return order.NewAPIError(op, resp.StatusCode, errorMessage(r))
	}
	if decode == nil {
		_, _ = io.Copy(io.Discard, r)
		return nil
	}
	if err := decode(r); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failure body, or returns "".
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return ""
}
