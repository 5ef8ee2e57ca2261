package apiclient

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
	"strings"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
)

const genericMessage = "request failed, please try again"

// APIError is a non-2xx response. Message is what the server said, or a generic text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

func (e *APIError) ServerMessage() string {
	return e.Message
}

// Client calls the storefront HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// option is a function that configures the Client.
type option func(*Client)

// New creates a client for the API mounted at baseURL (e.g. http://localhost:8080/api).
func New(baseURL string, opts ...option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithToken authenticates operator calls with a bearer token.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithToken(token string) option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithHTTPClient(hc *http.Client) option {
	return func(c *Client) {
		c.http = hc
	}
}

type createOrderResponse struct {
	OrderID string `json:"orderID"`
}

type captureOrderRequest struct {
	OrderID string `json:"orderID"`
}

type refundRequest struct {
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type notifyResponse struct {
	SentTo string `json:"sentTo"`
}

// CreateIntent asks for a card intent. An empty client secret means the card method is off.
func (c *Client) CreateIntent(ctx context.Context, req payment.CheckoutRequest) (payment.Intent, error) {
	var intent payment.Intent
	err := c.do(ctx, http.MethodPost, "/payment/intent", req, &intent)

	return intent, err
}

// CreateProviderOrder creates a redirect provider order and returns its id.
func (c *Client) CreateProviderOrder(ctx context.Context, req payment.CheckoutRequest) (string, error) {
	var resp createOrderResponse
	if err := c.do(ctx, http.MethodPost, "/payment/create-order", req, &resp); err != nil {
		return "", err
	}

	return resp.OrderID, nil
}

// CaptureProviderOrder captures an approved provider order.
func (c *Client) CaptureProviderOrder(ctx context.Context, providerOrderID string) (payment.CaptureResult, error) {
	var res payment.CaptureResult
	err := c.do(ctx, http.MethodPost, "/payment/capture-order", captureOrderRequest{OrderID: providerOrderID}, &res)

	return res, err
}

// RecordOrder records a paid card order.
func (c *Client) RecordOrder(ctx context.Context, req payment.RecordRequest) (*order.Order, error) {
	var o order.Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &o); err != nil {
		return nil, err
	}

	return &o, nil
}

// ListOrders returns orders, newest first.
func (c *Client) ListOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error) {
	q := url.Values{}
	for _, s := range filter.Statuses {
		q.Add("status", s.String())
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	path := "/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var orders []order.Order
	if err := c.do(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// GetOrder returns one order.
func (c *Client) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, &o); err != nil {
		return nil, err
	}

	return &o, nil
}

// PatchOrder updates status and/or tracking code.
func (c *Client) PatchOrder(ctx context.Context, id string, patch order.Patch) (*order.Order, error) {
	var o order.Order
	if err := c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id), patch, &o); err != nil {
		return nil, err
	}

	return &o, nil
}

// CancelOrder cancels an order.
func (c *Client) CancelOrder(ctx context.Context, id, reason string) (*order.Order, error) {
	var o order.Order
	err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/cancel", cancelRequest{Reason: reason}, &o)
	if err != nil {
		return nil, err
	}

	return &o, nil
}

// RefundOrder refunds an order's charge.
func (c *Client) RefundOrder(ctx context.Context, id, paymentIntentID string) (*order.Order, error) {
	var o order.Order
	body := refundRequest{PaymentIntentID: paymentIntentID}
	if err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/refund", body, &o); err != nil {
		return nil, err
	}

	return &o, nil
}

// NotifyShipping sends the shipping notification and returns the address notified.
func (c *Client) NotifyShipping(ctx context.Context, id string) (string, error) {
	var resp notifyResponse
	if err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/notify-shipping", nil, &resp); err != nil {
		return "", err
	}

	return resp.SentTo, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// errorMessage picks message, then error, from a JSON error body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return genericMessage
	}

	switch {
	case body.Message != "":
		return body.Message
	case body.Error != "":
		return body.Error
	default:
		return genericMessage
	}
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
