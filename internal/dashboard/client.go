// Package dashboard implements the client side of the order dashboard:
// an HTTP client for the order API and a session that coordinates the
// waiter's cart, the live order monitor, and the WebSocket event feed.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abba-pos/api/internal/order"
)

// Errors mapped from API responses.
var (
	ErrNotFound     = errors.New("order not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("order changed concurrently")
)

// DraftLine is one line of an order about to be created or updated.
type DraftLine struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int32     `json:"quantity"`
	Note       string    `json:"note,omitempty"`
}

// OrderDraft is the request body for creating an order or replacing the
// editable lines of an existing one.
type OrderDraft struct {
	Identifier string      `json:"identifier"`
	RoomNumber string      `json:"room_number,omitempty"`
	Items      []DraftLine `json:"items"`
}

// StatusChange requests a status transition. TipAmount is only meaningful
// when closing (paid or charged_to_room); RoomNumber is required for
// charged_to_room.
type StatusChange struct {
	Status     order.Status    `json:"status"`
	TipAmount  decimal.Decimal `json:"tip_amount"`
	RoomNumber string          `json:"room_number,omitempty"`
}

// Client is the order API surface the session needs.
type Client interface {
	CreateOrder(ctx context.Context, draft OrderDraft) (order.Snapshot, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, draft OrderDraft) (order.Snapshot, error)
	SetOrderStatus(ctx context.Context, id uuid.UUID, change StatusChange) (order.Snapshot, error)
	GetOrder(ctx context.Context, id uuid.UUID) (order.Snapshot, error)
	ListActiveOrders(ctx context.Context) ([]order.Snapshot, error)
}

// HTTPClient talks to the order API over HTTP with bearer-token auth.
type HTTPClient struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewHTTPClient creates a client for the API at baseURL. The token is sent
// as a Bearer header on every request; use SetToken after a refresh.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken replaces the bearer token after a login or refresh.
func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// CreateOrder submits a new order. Endpoint: POST /api/orders
func (c *HTTPClient) CreateOrder(ctx context.Context, draft OrderDraft) (order.Snapshot, error) {
	var snap order.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/orders", draft, &snap)
	return snap, err
}

// UpdateOrder replaces the editable lines of an order still in the
// kitchen. Endpoint: PUT /api/orders/{id}
func (c *HTTPClient) UpdateOrder(ctx context.Context, id uuid.UUID, draft OrderDraft) (order.Snapshot, error) {
	var snap order.Snapshot
	err := c.do(ctx, http.MethodPut, "/api/orders/"+id.String(), draft, &snap)
	return snap, err
}

// SetOrderStatus requests a transition. Endpoint: PATCH /api/orders/{id}/status
func (c *HTTPClient) SetOrderStatus(ctx context.Context, id uuid.UUID, change StatusChange) (order.Snapshot, error) {
	var snap order.Snapshot
	err := c.do(ctx, http.MethodPatch, "/api/orders/"+id.String()+"/status", change, &snap)
	return snap, err
}

// GetOrder fetches one order with its items. Endpoint: GET /api/orders/{id}
func (c *HTTPClient) GetOrder(ctx context.Context, id uuid.UUID) (order.Snapshot, error) {
	var snap order.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/orders/"+id.String(), nil, &snap)
	return snap, err
}

// ListActiveOrders fetches every non-terminal order for the initial board
// render. Endpoint: GET /api/orders/active
func (c *HTTPClient) ListActiveOrders(ctx context.Context) ([]order.Snapshot, error) {
	var snaps []order.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/orders/active", nil, &snaps)
	return snaps, err
}

// Login exchanges credentials for a token pair and stores the access
// token on the client. Endpoint: POST /api/auth/login
func (c *HTTPClient) Login(ctx context.Context, username, password string) error {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.AccessToken
	return nil
}

// Token returns the current access token, for the WebSocket handshake.
func (c *HTTPClient) Token() string {
	return c.token
}
