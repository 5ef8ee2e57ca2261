package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/corray333/backend-labs/storefront/internal/service/models/session"
	"github.com/google/uuid"
)

// Backend is the storefront API as seen by the checkout page.
type Backend interface {
	RedirectBackend
	CreateIntent(ctx context.Context, req payment.CheckoutRequest) (payment.Intent, error)
	RecordOrder(ctx context.Context, req payment.RecordRequest) (*order.Order, error)
}

// Navigator moves the buyer to the order confirmation view.
type Navigator interface {
	ShowOrderConfirmation(ctx context.Context, orderID string) error
}

// FlowDeps are the collaborators of a checkout page. A nil CardGateway disables
// the card method and a nil Widget disables the redirect method.
type FlowDeps struct {
	Store       SessionStore
	Backend     Backend
	Navigator   Navigator
	CardGateway CardGateway
	Wallet      WalletProbe
	Widget      Widget
	Redirect    RedirectConfig
}

// Flow is one checkout attempt: it owns the payment session, the selector and
// the success callback.
type Flow struct {
	deps       FlowDeps
	sessionID  string
	request    payment.CheckoutRequest
	completion *Completion
	selector   *Selector
	card       *CardHandler
}

// StartFlow creates the payment session, asks the server for an intent and
// mounts the default method.
func StartFlow(ctx context.Context, deps FlowDeps, req payment.CheckoutRequest) (*Flow, error) {
	f := &Flow{
		deps:      deps,
		sessionID: uuid.NewString(),
		request:   req,
	}
	f.completion = NewCompletion(f.onSuccess)

	sess := session.PaymentSession{
		ID:                f.sessionID,
		Items:             req.Items,
		ShippingAddressID: req.AddressID,
		Coupon:            req.Coupon,
		CustomerEmail:     req.CustomerEmail,
		CreatedAt:         time.Now(),
	}

	var card Handler
	if deps.CardGateway != nil {
		intent, err := deps.Backend.CreateIntent(ctx, req)
		if err != nil {
			slog.Warn("Card payment unavailable", "error", err)
		}
		if err == nil && intent.ClientSecret != "" {
			sess.Total = intent.Amount
			sess.Currency = intent.Currency
			f.card = NewCardHandler(deps.CardGateway, deps.Wallet, intent.ClientSecret, intent.Amount, intent.Currency)
			card = f.card
		}
	}

	var redirect Handler
	if deps.Widget != nil {
		redirect = NewRedirectHandler(deps.Redirect, deps.Backend, deps.Widget, req)
	}

	if err := deps.Store.Save(ctx, sess); err != nil {
		return nil, err
	}

	f.selector = NewSelector(f.completion, card, redirect)
	if err := f.selector.Start(ctx); err != nil {
		return nil, err
	}

	return f, nil
}

// SessionID returns the id of the payment session.
func (f *Flow) SessionID() string {
	return f.sessionID
}

// Options lists the offered methods, default first.
func (f *Flow) Options() []order.Provider {
	return f.selector.Options()
}

// Selected returns the mounted method.
func (f *Flow) Selected() order.Provider {
	return f.selector.Selected()
}

// WalletAvailable reports whether the one-tap wallet button is offered.
func (f *Flow) WalletAvailable(ctx context.Context) bool {
	return f.card != nil && f.selector.Selected() == order.ProviderCard && f.card.WalletAvailable(ctx)
}

// Select switches the payment method.
func (f *Flow) Select(ctx context.Context, method order.Provider) error {
	return f.selector.Select(ctx, method)
}

// Pay runs the mounted method. Failures are recorded on the session and
// returned as *Error; a cancelled approval is a neutral outcome.
func (f *Flow) Pay(ctx context.Context, in Input) (Outcome, error) {
	method := f.selector.Selected()
	f.updateSession(ctx, func(s *session.PaymentSession) {
		s.ProviderInFlight = method
		s.LastError = ""
	})

	outcome, err := f.selector.Pay(ctx, in)
	if f.completion.Fired() {
		return outcome, err
	}

	f.updateSession(ctx, func(s *session.PaymentSession) {
		s.ProviderInFlight = ""
		switch {
		case err != nil:
			s.LastError = Classify(err).Message
		case outcome.Status == OutcomeCancelled:
			s.LastError = outcome.Message
		}
	})

	return outcome, err
}

// Abandon unmounts the method and discards the session.
func (f *Flow) Abandon(ctx context.Context) error {
	f.selector.Close()

	return f.deps.Store.Clear(ctx, f.sessionID)
}

// onSuccess records the order unless the provider already did, clears the
// session and shows the confirmation.
func (f *Flow) onSuccess(ctx context.Context, outcome Outcome) error {
	f.selector.Close()

	orderID := outcome.OrderID
	if orderID == "" {
		o, err := f.deps.Backend.RecordOrder(ctx, payment.RecordRequest{
			Items:           f.request.Items,
			AddressID:       f.request.AddressID,
			Coupon:          f.request.Coupon,
			CustomerEmail:   f.request.CustomerEmail,
			Provider:        outcome.Provider,
			PaymentIntentID: outcome.Reference,
		})
		if err != nil {
			slog.Error("Paid order could not be recorded",
				"provider", outcome.Provider,
				"reference", outcome.Reference,
				"error", err,
			)
			f.updateSession(ctx, func(s *session.PaymentSession) {
				s.ProviderInFlight = ""
				s.PaidWith = outcome.Provider
				s.PaymentReference = outcome.Reference
				s.LastError = "payment received but the order could not be recorded"
			})

			return fmt.Errorf("failed to record paid order: %w", err)
		}
		orderID = o.ID
	}

	if err := f.deps.Store.Clear(ctx, f.sessionID); err != nil {
		slog.Warn("Failed to clear payment session", "session_id", f.sessionID, "error", err)
	}

	if f.deps.Navigator == nil {
		return nil
	}

	return f.deps.Navigator.ShowOrderConfirmation(ctx, orderID)
}

func (f *Flow) updateSession(ctx context.Context, fn func(s *session.PaymentSession)) {
	sess, err := f.deps.Store.Load(ctx, f.sessionID)
	if err != nil {
		slog.Warn("Failed to load payment session", "session_id", f.sessionID, "error", err)

		return
	}

	fn(sess)
	if err := f.deps.Store.Save(ctx, *sess); err != nil {
		slog.Warn("Failed to save payment session", "session_id", f.sessionID, "error", err)
	}
}
