package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/shopspring/decimal"
)

type fakeGateway struct {
	mu       sync.Mutex
	confirms []payment.CardConfirmation
	errs     []error
	action   payment.CardConfirmation
	actions  int
	calls    int
	block    chan struct{}
}

func (g *fakeGateway) ConfirmCardPayment(ctx context.Context, secret, _ string) (payment.CardConfirmation, error) {
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return payment.CardConfirmation{}, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return payment.CardConfirmation{}, g.errs[i]
	}
	if i < len(g.confirms) {
		return g.confirms[i], nil
	}

	return payment.CardConfirmation{IntentID: "pi_123", Status: payment.IntentSucceeded}, nil
}

func (g *fakeGateway) HandleCardAction(context.Context, string) (payment.CardConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.actions++

	return g.action, nil
}

type fakeWallet struct {
	ok bool
}

func (w fakeWallet) CanMakePayment(context.Context, decimal.Decimal, currency.Currency) (bool, error) {
	return w.ok, nil
}

type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string         { return e.msg }
func (e *httpError) HTTPStatus() int       { return e.status }
func (e *httpError) ServerMessage() string { return e.msg }

type fakeBackend struct {
	mu sync.Mutex

	intent    payment.Intent
	intentErr error

	providerOrderID string
	createErr       error
	capture         payment.CaptureResult
	captureErr      error

	recordErr error

	intentCalls  int
	createCalls  int
	captureCalls int
	recorded     []payment.RecordRequest
}

func (b *fakeBackend) CreateIntent(context.Context, payment.CheckoutRequest) (payment.Intent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.intentCalls++

	return b.intent, b.intentErr
}

func (b *fakeBackend) CreateProviderOrder(context.Context, payment.CheckoutRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createCalls++

	return b.providerOrderID, b.createErr
}

func (b *fakeBackend) CaptureProviderOrder(context.Context, string) (payment.CaptureResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captureCalls++

	return b.capture, b.captureErr
}

func (b *fakeBackend) RecordOrder(_ context.Context, req payment.RecordRequest) (*order.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recordErr != nil {
		return nil, b.recordErr
	}
	b.recorded = append(b.recorded, req)

	return &order.Order{ID: "order-1", PaymentIntentID: req.PaymentIntentID}, nil
}

func (b *fakeBackend) redirectCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.createCalls + b.captureCalls
}

type fakeWidget struct {
	loaded   bool
	approval Approval
	err      error
	awaited  []string
}

func (w *fakeWidget) Loaded() bool { return w.loaded }

func (w *fakeWidget) AwaitApproval(_ context.Context, id string) (Approval, error) {
	w.awaited = append(w.awaited, id)

	return w.approval, w.err
}

type fakeNavigator struct {
	shown []string
}

func (n *fakeNavigator) ShowOrderConfirmation(_ context.Context, id string) error {
	n.shown = append(n.shown, id)

	return nil
}

type successRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	err      error
}

func (r *successRecorder) fn(_ context.Context, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)

	return r.err
}

func (r *successRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.outcomes)
}

func testRequest() payment.CheckoutRequest {
	return payment.CheckoutRequest{
		Items:     []payment.CartItem{{ProductID: "home", Quantity: 1}},
		AddressID: "addr-1",
	}
}

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)
