package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultScriptTimeout = 5 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond
)

var errWidgetNotLoaded = errors.New("widget not loaded yet")

// Approval is what the widget reports when the buyer approves a provider order.
type Approval struct {
	OrderID string
	PayerID string
}

// Widget is the redirect provider's buyer-facing button and approval window.
// AwaitApproval returns ErrBuyerCancelled when the buyer closes the window.
type Widget interface {
	Loaded() bool
	AwaitApproval(ctx context.Context, providerOrderID string) (Approval, error)
}

// RedirectBackend creates and captures provider orders on the server.
type RedirectBackend interface {
	CreateProviderOrder(ctx context.Context, req payment.CheckoutRequest) (string, error)
	CaptureProviderOrder(ctx context.Context, providerOrderID string) (payment.CaptureResult, error)
}

// RedirectConfig configures the redirect handler.
type RedirectConfig struct {
	ClientID      string
	ScriptTimeout time.Duration
	PollInterval  time.Duration
}

// RedirectHandler pays through a provider order that the buyer approves in the
// provider's window and the server then captures.
type RedirectHandler struct {
	cfg     RedirectConfig
	backend RedirectBackend
	widget  Widget
	request payment.CheckoutRequest

	mu     sync.Mutex
	ticket *Ticket
	busy   atomic.Bool
}

// NewRedirectHandler creates a handler for the given cart.
func NewRedirectHandler(
	cfg RedirectConfig,
	backend RedirectBackend,
	widget Widget,
	req payment.CheckoutRequest,
) *RedirectHandler {
	if cfg.ScriptTimeout <= 0 {
		cfg.ScriptTimeout = DefaultScriptTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &RedirectHandler{
		cfg:     cfg,
		backend: backend,
		widget:  widget,
		request: req,
	}
}

func (h *RedirectHandler) Method() order.Provider {
	return order.ProviderRedirect
}

// Mount waits for the widget to load. It fails right away without a client id.
func (h *RedirectHandler) Mount(ctx context.Context, ticket *Ticket) error {
	if h.cfg.ClientID == "" {
		return newError(CategoryConfiguration, "", ErrMissingClientID)
	}

	backoff := retry.WithMaxDuration(h.cfg.ScriptTimeout, retry.NewConstant(h.cfg.PollInterval))
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		if h.widget.Loaded() {
			return nil
		}

		return retry.RetryableError(errWidgetNotLoaded)
	})
	if err != nil {
		slog.Error("Redirect widget failed to load", "error", err)

		return newError(CategoryScriptLoad, "", errors.Join(ErrScriptLoad, err))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticket = ticket

	return nil
}

func (h *RedirectHandler) Unmount() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ticket.Revoke()
	h.ticket = nil
}

func (h *RedirectHandler) Busy() bool {
	return h.busy.Load()
}

func (h *RedirectHandler) currentTicket() *Ticket {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ticket
}

// Pay creates the provider order, waits for the buyer and captures on approval.
func (h *RedirectHandler) Pay(ctx context.Context, _ Input) (Outcome, error) {
	if h.currentTicket() == nil {
		return Outcome{}, ErrNotMounted
	}
	if !h.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrPaymentInFlight
	}
	defer h.busy.Store(false)

	providerOrderID, err := h.CreateOrder(ctx)
	if err != nil {
		return Outcome{}, err
	}

	approval, err := h.widget.AwaitApproval(ctx, providerOrderID)
	if errors.Is(err, ErrBuyerCancelled) {
		return h.OnCancel(), nil
	}
	if err != nil {
		return Outcome{}, h.OnError(err)
	}
	if approval.OrderID == "" {
		approval.OrderID = providerOrderID
	}

	return h.OnApprove(ctx, approval)
}

// CreateOrder asks the server to create a provider order for the cart. The
// server computes the amount.
func (h *RedirectHandler) CreateOrder(ctx context.Context) (string, error) {
	id, err := h.backend.CreateProviderOrder(ctx, h.request)
	if err == nil && id == "" {
		err = errors.New("empty provider order id")
	}
	if err != nil {
		ce := Classify(err)
		slog.Error("Failed to create provider order", "category", ce.Category, "error", err)

		return "", newError(ce.Category, msgCreateOrderFailed, err)
	}

	return id, nil
}

// OnApprove captures the approved order and reports success once.
func (h *RedirectHandler) OnApprove(ctx context.Context, approval Approval) (Outcome, error) {
	ticket := h.currentTicket()
	if ticket == nil {
		return Outcome{}, ErrNotMounted
	}

	res, err := h.backend.CaptureProviderOrder(ctx, approval.OrderID)
	if err != nil {
		ce := Classify(err)
		if ce.Category == CategoryConflict {
			return Outcome{}, newError(CategoryConflict, msgAlreadyCaptured, errors.Join(ErrAlreadyCaptured, err))
		}

		return Outcome{}, h.OnError(err)
	}
	if !res.Success {
		return Outcome{}, newError(CategoryDecline, "", errors.New("capture status "+res.Status))
	}

	outcome := Outcome{
		Status:    OutcomeSucceeded,
		Provider:  order.ProviderRedirect,
		Reference: res.CaptureID,
		OrderID:   res.OrderID,
	}

	err = ticket.Fire(ctx, outcome)
	if errors.Is(err, ErrTicketRevoked) {
		slog.Warn("Redirect capture succeeded after the handler was unmounted",
			"provider_order_id", approval.OrderID,
		)
	}

	return outcome, err
}

// OnError logs the raw failure and returns its buyer-facing form.
func (h *RedirectHandler) OnError(err error) error {
	ce := Classify(err)
	slog.Error("Redirect payment failed", "category", ce.Category, "error", err)

	return ce
}

// OnCancel is a neutral outcome, not a failure.
func (h *RedirectHandler) OnCancel() Outcome {
	return Outcome{
		Status:   OutcomeCancelled,
		Provider: order.ProviderRedirect,
		Message:  msgCancelled,
	}
}
