package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/corray333/backend-labs/storefront/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/storefront/internal/service/services/paymentsvc"
	"github.com/corray333/backend-labs/storefront/pkg/http/middleware/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = []byte("test-secret")
	testIssuer = "storefront-test"
)

type stubOrders struct {
	orders   map[string]*order.Order
	filter   order.QueryOrdersModel
	cancelBy string
}

func (s *stubOrders) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, iorderrepo.ErrNotFound
	}

	return o, nil
}

func (s *stubOrders) List(_ context.Context, filter order.QueryOrdersModel) ([]order.Order, error) {
	s.filter = filter
	result := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		result = append(result, *o)
	}

	return result, nil
}

func (s *stubOrders) Apply(ctx context.Context, id string, patch order.Patch) (*order.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil {
		o.Status = *patch.Status
	}

	return o, nil
}

func (s *stubOrders) Cancel(ctx context.Context, id, by, _ string) (*order.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cancelBy = by
	o.Status = order.StatusCancelled

	return o, nil
}

func (s *stubOrders) Refund(ctx context.Context, id, _ string) (*order.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Refunded {
		return nil, ordersvc.ErrAlreadyRefunded
	}
	o.Refunded = true

	return o, nil
}

func (s *stubOrders) NotifyShipping(ctx context.Context, id string) (string, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !o.CanNotifyShipping() {
		return "", ordersvc.ErrNotShipped
	}

	return o.CustomerEmail, nil
}

type stubPayments struct {
	captured map[string]bool
	recorded payment.RecordRequest
}

func (s *stubPayments) CreateIntent(_ context.Context, _ payment.CheckoutRequest) (payment.Intent, error) {
	return payment.Intent{IntentID: "pi_1", ClientSecret: "pi_1_secret_x"}, nil
}

func (s *stubPayments) CreateOrder(_ context.Context, _ payment.CheckoutRequest) (string, error) {
	return "", paymentsvc.ErrProviderUnavailable
}

func (s *stubPayments) CaptureOrder(_ context.Context, id string) (payment.CaptureResult, error) {
	if s.captured[id] {
		return payment.CaptureResult{}, paymentsvc.ErrAlreadyCaptured
	}
	s.captured[id] = true

	return payment.CaptureResult{Success: true, OrderID: "ord-" + id, Status: payment.CaptureStatusCompleted}, nil
}

func (s *stubPayments) RecordIntentPayment(_ context.Context, req payment.RecordRequest) (*order.Order, error) {
	s.recorded = req

	return &order.Order{ID: "ord-new", PaymentIntentID: req.PaymentIntentID, Status: order.StatusProcessing}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubOrders, *stubPayments) {
	t.Helper()

	orders := &stubOrders{orders: map[string]*order.Order{
		"o1": {ID: "o1", Status: order.StatusShipped, TrackingCode: "TRK1", CustomerEmail: "fan@example.com"},
		"o2": {ID: "o2", Status: order.StatusPending},
	}}
	payments := &stubPayments{captured: map[string]bool{}}

	transport := NewHTTPTransport(orders, payments, WithOperatorAuth(testSecret, testIssuer))
	transport.RegisterRoutes()

	srv := httptest.NewServer(transport.Handler())
	t.Cleanup(srv.Close)

	return srv, orders, payments
}

func operatorToken(t *testing.T) string {
	t.Helper()

	token, err := auth.IssueToken(testSecret, testIssuer, "ops@example.com", time.Hour)
	require.NoError(t, err)

	return token
}

func do(t *testing.T, method, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)

	return resp, decoded
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	srv, _, _ := newTestServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/orders"},
		{http.MethodGet, "/api/orders/o1"},
		{http.MethodPatch, "/api/orders/o1"},
		{http.MethodPost, "/api/orders/o1/cancel"},
		{http.MethodPost, "/api/orders/o1/refund"},
		{http.MethodPost, "/api/orders/o1/notify-shipping"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			resp, _ := do(t, rt.method, srv.URL+rt.path, "", "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestGetOrder(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := operatorToken(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/orders/o1", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "o1", body["id"])

	resp, body = do(t, http.MethodGet, srv.URL+"/api/orders/missing", token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, iorderrepo.ErrNotFound.Error(), body["message"])
}

func TestCancelRecordsOperator(t *testing.T) {
	srv, orders, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/orders/o2/cancel", operatorToken(t), `{"reason":"duplicate"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(order.StatusCancelled), body["status"])
	assert.Equal(t, "ops@example.com", orders.cancelBy)
}

func TestRefundTwiceConflicts(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := operatorToken(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/orders/o1/refund", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/orders/o1/refund", token, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, ordersvc.ErrAlreadyRefunded.Error(), body["message"])
}

func TestNotifyShipping(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := operatorToken(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/orders/o1/notify-shipping", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fan@example.com", body["sentTo"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/orders/o2/notify-shipping", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCaptureTwiceConflicts(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/payment/capture-order", "", `{"orderID":"PP-1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/payment/capture-order", "", `{"orderID":"PP-1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCaptureRequiresOrderID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/payment/capture-order", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePaymentOrderUnavailable(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := `{"items":[{"productId":"p1","quantity":1}]}`
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/payment/create-order", "", body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRecordOrderIsPublic(t *testing.T) {
	srv, _, payments := newTestServer(t)

	body := fmt.Sprintf(`{"items":[{"productId":"p1","quantity":2}],"provider":%q,"paymentIntentId":"pi_1"}`, order.ProviderCard)
	resp, decoded := do(t, http.MethodPost, srv.URL+"/api/orders", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ord-new", decoded["id"])
	assert.Equal(t, "pi_1", payments.recorded.PaymentIntentID)
}
