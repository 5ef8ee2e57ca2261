package checkout

import (
	"context"
	"testing"

	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mountedCard(t *testing.T, gw *fakeGateway, rec *successRecorder) *CardHandler {
	t.Helper()

	h := NewCardHandler(gw, fakeWallet{ok: true}, "pi_123_secret_x", decimal.RequireFromString("89.99"), currency.CurrencyEUR)
	require.NoError(t, h.Mount(context.Background(), NewCompletion(rec.fn).Issue()))

	return h
}

func TestCardHandler_Success(t *testing.T) {
	rec := &successRecorder{}
	h := mountedCard(t, &fakeGateway{}, rec)

	outcome, err := h.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm_card_visa"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, outcome.Status)
	assert.Equal(t, order.ProviderCard, outcome.Provider)
	assert.Equal(t, "pi_123", outcome.Reference)
	assert.Equal(t, 1, rec.count())
	assert.False(t, h.Busy())
}

func TestCardHandler_ProcessingCountsAsSuccess(t *testing.T) {
	rec := &successRecorder{}
	gw := &fakeGateway{confirms: []payment.CardConfirmation{{IntentID: "pi_123", Status: payment.IntentProcessing}}}
	h := mountedCard(t, gw, rec)

	_, err := h.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm_card_visa"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count())
}

func TestCardHandler_ActionRound(t *testing.T) {
	rec := &successRecorder{}
	gw := &fakeGateway{
		confirms: []payment.CardConfirmation{{IntentID: "pi_123", Status: payment.IntentRequiresAction}},
		action:   payment.CardConfirmation{IntentID: "pi_123", Status: payment.IntentSucceeded},
	}
	h := mountedCard(t, gw, rec)

	_, err := h.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm_card_threeDSecure2Required"})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.actions)
	assert.Equal(t, 1, rec.count())
}

func TestCardHandler_ActionNotCompleted(t *testing.T) {
	rec := &successRecorder{}
	gw := &fakeGateway{
		confirms: []payment.CardConfirmation{{IntentID: "pi_123", Status: payment.IntentRequiresAction}},
		action:   payment.CardConfirmation{IntentID: "pi_123", Status: payment.IntentRequiresAction},
	}
	h := mountedCard(t, gw, rec)

	_, err := h.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm"})
	require.Error(t, err)
	assert.Equal(t, CategoryAuthentication, Classify(err).Category)
	assert.Zero(t, rec.count())
}

func TestCardHandler_DeclineThenRetry(t *testing.T) {
	rec := &successRecorder{}
	gw := &fakeGateway{
		errs: []error{&payment.ProviderError{
			Provider: "stripe",
			Kind:     payment.KindDecline,
			Code:     "card_declined",
			Message:  "Your card was declined.",
		}},
	}
	h := mountedCard(t, gw, rec)

	_, err := h.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm_card_chargeDeclined"})
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CategoryDecline, ce.Category)
	assert.Equal(t, "Your card was declined.", ce.Message)
	assert.True(t, ce.Retryable())
	assert.False(t, h.Busy())
	assert.Zero(t, rec.count())

	_, err = h.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm_card_visa"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count())
}

func TestCardHandler_DeclinedStatus(t *testing.T) {
	rec := &successRecorder{}
	gw := &fakeGateway{confirms: []payment.CardConfirmation{{
		IntentID:       "pi_123",
		Status:         payment.IntentRequiresPaymentMethod,
		DeclineMessage: "Insufficient funds.",
	}}}
	h := mountedCard(t, gw, rec)

	_, err := h.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm"})
	ce := Classify(err)
	assert.Equal(t, CategoryDecline, ce.Category)
	assert.Equal(t, "Insufficient funds.", ce.Message)
}

func TestCardHandler_ValidationError(t *testing.T) {
	rec := &successRecorder{}
	h := mountedCard(t, &fakeGateway{}, rec)

	_, err := h.SubmitCardPayment(context.Background(), CardForm{})
	assert.Equal(t, CategoryValidation, Classify(err).Category)
}

func TestCardHandler_SingleFlight(t *testing.T) {
	rec := &successRecorder{}
	gw := &fakeGateway{block: make(chan struct{})}
	h := mountedCard(t, gw, rec)

	done := make(chan error, 1)
	go func() {
		_, err := h.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm_card_visa"})
		done <- err
	}()

	require.Eventually(t, h.Busy, timeout, tick)

	_, err := h.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm_card_visa"})
	require.ErrorIs(t, err, ErrPaymentInFlight)

	close(gw.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, rec.count())
}

func TestCardHandler_NotMounted(t *testing.T) {
	h := NewCardHandler(&fakeGateway{}, nil, "pi_123_secret_x", decimal.Zero, currency.CurrencyEUR)

	_, err := h.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm"})
	require.ErrorIs(t, err, ErrNotMounted)
}

func TestCardHandler_NoClientSecret(t *testing.T) {
	h := NewCardHandler(&fakeGateway{}, nil, "", decimal.Zero, currency.CurrencyEUR)

	require.ErrorIs(t, h.Mount(context.Background(), NewCompletion(nil).Issue()), ErrMethodUnavailable)
	assert.False(t, h.WalletAvailable(context.Background()))
}

func TestCardHandler_WalletSuccessCompletesBeforeSuccess(t *testing.T) {
	var calls []string

	c := NewCompletion(func(context.Context, Outcome) error {
		calls = append(calls, "onSuccess")

		return nil
	})
	h := NewCardHandler(&fakeGateway{}, fakeWallet{ok: true}, "pi_123_secret_x", decimal.NewFromInt(10), currency.CurrencyEUR)
	require.NoError(t, h.Mount(context.Background(), c.Issue()))
	assert.True(t, h.WalletAvailable(context.Background()))

	ev := NewWalletEvent("pm_wallet", "fan@example.com", func(s WalletStatus) {
		calls = append(calls, "complete:"+string(s))
	})

	_, err := h.Pay(context.Background(), Input{Wallet: ev})
	require.NoError(t, err)
	assert.Equal(t, []string{"complete:success", "onSuccess"}, calls)
}

func TestCardHandler_WalletFailureCompletesWithFail(t *testing.T) {
	rec := &successRecorder{}
	gw := &fakeGateway{errs: []error{&payment.ProviderError{Provider: "stripe", Kind: payment.KindDecline}}}
	h := mountedCard(t, gw, rec)

	var got []WalletStatus
	ev := NewWalletEvent("pm_wallet", "", func(s WalletStatus) { got = append(got, s) })

	_, err := h.SubmitWalletPayment(context.Background(), ev)
	require.Error(t, err)
	assert.Equal(t, []WalletStatus{WalletFail}, got)
	assert.Zero(t, rec.count())
}

func TestCardHandler_WalletCompletedOnEarlyExit(t *testing.T) {
	h := NewCardHandler(&fakeGateway{}, nil, "pi_123_secret_x", decimal.Zero, currency.CurrencyEUR)

	var got []WalletStatus
	ev := NewWalletEvent("pm_wallet", "", func(s WalletStatus) { got = append(got, s) })

	_, err := h.SubmitWalletPayment(context.Background(), ev)
	require.ErrorIs(t, err, ErrNotMounted)
	assert.Equal(t, []WalletStatus{WalletFail}, got)
}

func TestCardHandler_WalletAfterActionRound(t *testing.T) {
	var calls []string

	c := NewCompletion(func(context.Context, Outcome) error {
		calls = append(calls, "onSuccess")

		return nil
	})
	gw := &fakeGateway{
		confirms: []payment.CardConfirmation{{IntentID: "pi_123", Status: payment.IntentRequiresAction}},
		action:   payment.CardConfirmation{IntentID: "pi_123", Status: payment.IntentSucceeded},
	}
	h := NewCardHandler(gw, nil, "pi_123_secret_x", decimal.NewFromInt(10), currency.CurrencyEUR)
	require.NoError(t, h.Mount(context.Background(), c.Issue()))

	ev := NewWalletEvent("pm_wallet", "", func(s WalletStatus) {
		calls = append(calls, "complete:"+string(s))
	})

	_, err := h.SubmitWalletPayment(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.actions)
	assert.Equal(t, []string{"complete:success", "onSuccess"}, calls)
}
