// Package backend is the authenticated HTTP client for the storefront REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"notification-engine/internal/models"
	"notification-engine/internal/util"
)

const maxResponseBytes = 1 << 20

// ErrUnsuccessful is returned when the API answers 2xx with "success": false
var ErrUnsuccessful = errors.New("backend reported unsuccessful response")

// StatusError is returned for non-2xx responses
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client talks to the storefront API. Every request waits on a shared rate limiter.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a backend client. rps <= 0 disables pacing.
func NewClient(baseURL string, timeout time.Duration, rps float64, logger *zap.Logger) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

type envelope struct {
	Success *bool `json:"success"`
}

func (e envelope) ok() bool {
	return e.Success == nil || *e.Success
}

type cartResponse struct {
	envelope
	Cart []models.CartItem `json:"cart"`
}

type wishlistResponse struct {
	envelope
	Wishlist []models.WishlistItem `json:"wishlist"`
}

type ordersResponse struct {
	envelope
	Orders []models.Order `json:"orders"`
}

type productResponse struct {
	envelope
	Product *models.Product `json:"product"`
}

// GetCart fetches the current cart contents
func (c *Client) GetCart(ctx context.Context, token string) ([]models.CartItem, error) {
	var resp cartResponse
	if err := c.do(ctx, "get_cart", http.MethodGet, "/user/get-cart", token, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, ErrUnsuccessful
	}
	if resp.Cart == nil {
		return []models.CartItem{}, nil
	}
	return resp.Cart, nil
}

// GetWishlist fetches the wishlist
func (c *Client) GetWishlist(ctx context.Context, token string) ([]models.WishlistItem, error) {
	var resp wishlistResponse
	if err := c.do(ctx, "get_wishlist", http.MethodGet, "/user/get-wishlist", token, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, ErrUnsuccessful
	}
	if resp.Wishlist == nil {
		return []models.WishlistItem{}, nil
	}
	return resp.Wishlist, nil
}

// GetMyOrders fetches the signed-in user's orders
func (c *Client) GetMyOrders(ctx context.Context, token string) ([]models.Order, error) {
	var resp ordersResponse
	if err := c.do(ctx, "my_orders", http.MethodGet, "/order/my-orders", token, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, ErrUnsuccessful
	}
	if resp.Orders == nil {
		return []models.Order{}, nil
	}
	return resp.Orders, nil
}

// GetProduct fetches the live detail record of one product
func (c *Client) GetProduct(ctx context.Context, token, productID string) (*models.Product, error) {
	var resp productResponse
	path := "/product/get-product/" + url.PathEscape(productID)
	if err := c.do(ctx, "get_product", http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, ErrUnsuccessful
	}
	if resp.Product == nil {
		return nil, fmt.Errorf("get_product %s: response has no product", productID)
	}
	return resp.Product, nil
}

// SendNotification relays a notification record through POST /notifications/send
func (c *Client) SendNotification(ctx context.Context, token string, n models.RelayNotification) error {
	var resp envelope
	if err := c.do(ctx, "send_notification", http.MethodPost, "/notifications/send", token, n, &resp); err != nil {
		return err
	}
	if !resp.ok() {
		return ErrUnsuccessful
	}
	return nil
}

// SendOrderNotification relays an order notification through POST /notifications/send-order
func (c *Client) SendOrderNotification(ctx context.Context, token string, n models.OrderRelayNotification) error {
	var resp envelope
	if err := c.do(ctx, "send_order_notification", http.MethodPost, "/notifications/send-order", token, n, &resp); err != nil {
		return err
	}
	if !resp.ok() {
		return ErrUnsuccessful
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path, token string, body, out any) (err error) {
	ctx, span := util.StartSpan(ctx, "BackendClient."+endpoint, util.AttrEndpoint.String(endpoint))
	defer span.End()

	start := time.Now()
	status := "error"
	defer func() {
		util.BackendRequestLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		util.BackendRequestsTotal.WithLabelValues(endpoint, status).Inc()
		if err != nil {
			span.RecordError(err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", endpoint, err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", endpoint, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(raw), 200)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", endpoint, err)
	}

	c.logger.Debug("Backend request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))
	return nil
}

// truncate caps s at n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
