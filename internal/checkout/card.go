package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/shopspring/decimal"
)

// CardGateway confirms card intents with the card provider.
type CardGateway interface {
	ConfirmCardPayment(ctx context.Context, clientSecret, paymentMethod string) (payment.CardConfirmation, error)
	HandleCardAction(ctx context.Context, clientSecret string) (payment.CardConfirmation, error)
}

// WalletProbe asks the device whether a one-tap wallet can pay.
type WalletProbe interface {
	CanMakePayment(ctx context.Context, amount decimal.Decimal, cur currency.Currency) (bool, error)
}

// CardForm is the entered card, tokenised as a provider payment method.
type CardForm struct {
	PaymentMethod string
}

// CardHandler pays an existing intent with a card or a device wallet.
type CardHandler struct {
	gateway      CardGateway
	wallet       WalletProbe
	clientSecret string
	amount       decimal.Decimal
	currency     currency.Currency

	mu     sync.Mutex
	ticket *Ticket
	busy   atomic.Bool
}

// NewCardHandler creates a handler for the intent behind clientSecret. wallet may be nil.
func NewCardHandler(
	gateway CardGateway,
	wallet WalletProbe,
	clientSecret string,
	amount decimal.Decimal,
	cur currency.Currency,
) *CardHandler {
	return &CardHandler{
		gateway:      gateway,
		wallet:       wallet,
		clientSecret: clientSecret,
		amount:       amount,
		currency:     cur,
	}
}

func (h *CardHandler) Method() order.Provider {
	return order.ProviderCard
}

func (h *CardHandler) Mount(_ context.Context, ticket *Ticket) error {
	if h.clientSecret == "" {
		return ErrMethodUnavailable
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticket = ticket

	return nil
}

func (h *CardHandler) Unmount() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ticket.Revoke()
	h.ticket = nil
}

func (h *CardHandler) Busy() bool {
	return h.busy.Load()
}

func (h *CardHandler) currentTicket() *Ticket {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ticket
}

// Pay submits the wallet event if present, the card form otherwise.
func (h *CardHandler) Pay(ctx context.Context, in Input) (Outcome, error) {
	switch {
	case in.Wallet != nil:
		return h.SubmitWalletPayment(ctx, in.Wallet)
	case in.Card != nil:
		return h.SubmitCardPayment(ctx, *in.Card)
	default:
		return Outcome{}, newError(CategoryValidation, "", ErrMissingPaymentInput)
	}
}

// WalletAvailable reports whether the wallet button should be offered.
func (h *CardHandler) WalletAvailable(ctx context.Context) bool {
	if h.wallet == nil || h.clientSecret == "" {
		return false
	}

	ok, err := h.wallet.CanMakePayment(ctx, h.amount, h.currency)
	if err != nil {
		slog.Warn("Wallet availability check failed", "error", err)

		return false
	}

	return ok
}

// SubmitCardPayment confirms the intent with the entered card.
func (h *CardHandler) SubmitCardPayment(ctx context.Context, form CardForm) (Outcome, error) {
	ticket, release, err := h.begin()
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	outcome, err := h.confirm(ctx, form.PaymentMethod)
	if err != nil {
		return Outcome{}, err
	}

	return outcome, h.fire(ctx, ticket, outcome)
}

// SubmitWalletPayment confirms the intent with the method from a wallet event.
// The event is completed exactly once with the final result, before success is reported.
func (h *CardHandler) SubmitWalletPayment(ctx context.Context, ev *WalletEvent) (Outcome, error) {
	defer func() {
		if _, done := ev.Completed(); !done {
			_ = ev.Complete(WalletFail)
		}
	}()

	ticket, release, err := h.begin()
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	outcome, err := h.confirm(ctx, ev.PaymentMethod)
	if err != nil {
		if cerr := ev.Complete(WalletFail); cerr != nil {
			slog.Warn("Wallet event completed twice", "error", cerr)
		}

		return Outcome{}, err
	}

	if err := ev.Complete(WalletSuccess); err != nil {
		slog.Warn("Wallet event completed twice", "error", err)
	}

	return outcome, h.fire(ctx, ticket, outcome)
}

func (h *CardHandler) begin() (*Ticket, func(), error) {
	ticket := h.currentTicket()
	if ticket == nil {
		return nil, nil, ErrNotMounted
	}
	if !h.busy.CompareAndSwap(false, true) {
		return nil, nil, ErrPaymentInFlight
	}

	return ticket, func() { h.busy.Store(false) }, nil
}

// confirm runs the confirmation round and, if the provider asks for it, the action round.
func (h *CardHandler) confirm(ctx context.Context, paymentMethod string) (Outcome, error) {
	if paymentMethod == "" {
		return Outcome{}, newError(CategoryValidation, "", ErrMissingPaymentInput)
	}

	conf, err := h.gateway.ConfirmCardPayment(ctx, h.clientSecret, paymentMethod)
	if err != nil {
		return Outcome{}, h.failure(err)
	}

	if conf.Status == payment.IntentRequiresAction {
		conf, err = h.gateway.HandleCardAction(ctx, h.clientSecret)
		if err != nil {
			return Outcome{}, h.failure(err)
		}
	}

	switch {
	case conf.Status.IsPaid():
		return Outcome{
			Status:    OutcomeSucceeded,
			Provider:  order.ProviderCard,
			Reference: conf.IntentID,
		}, nil
	case conf.Status == payment.IntentRequiresAction:
		return Outcome{}, newError(CategoryAuthentication, "", errors.New("card authentication was not completed"))
	default:
		return Outcome{}, newError(CategoryDecline, conf.DeclineMessage, errors.New("intent status "+string(conf.Status)))
	}
}

func (h *CardHandler) failure(err error) error {
	ce := Classify(err)
	slog.Error("Card payment failed",
		"category", ce.Category,
		"error", err,
	)

	return ce
}

func (h *CardHandler) fire(ctx context.Context, ticket *Ticket, outcome Outcome) error {
	err := ticket.Fire(ctx, outcome)
	if errors.Is(err, ErrTicketRevoked) {
		slog.Warn("Card payment succeeded after the handler was unmounted",
			"intent_id", outcome.Reference,
		)
	}

	return err
}
