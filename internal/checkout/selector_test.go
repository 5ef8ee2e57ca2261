package checkout

import (
	"context"
	"testing"

	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_DefaultsToCard(t *testing.T) {
	c := NewCompletion((&successRecorder{}).fn)
	card := NewCardHandler(&fakeGateway{}, nil, "pi_123_secret_x", decimal.NewFromInt(10), currency.CurrencyEUR)
	redirect := newRedirect(&fakeBackend{}, &fakeWidget{loaded: true})

	s := NewSelector(c, card, redirect)
	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, []order.Provider{order.ProviderCard, order.ProviderRedirect}, s.Options())
	assert.Equal(t, order.ProviderCard, s.Selected())
	assert.Same(t, card, s.Current())
}

func TestSelector_NoIntentOffersOnlyRedirect(t *testing.T) {
	c := NewCompletion((&successRecorder{}).fn)
	redirect := newRedirect(&fakeBackend{}, &fakeWidget{loaded: true})

	s := NewSelector(c, nil, redirect)
	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, []order.Provider{order.ProviderRedirect}, s.Options())
	assert.Equal(t, order.ProviderRedirect, s.Selected())

	err := s.Select(context.Background(), order.ProviderCard)
	require.ErrorIs(t, err, ErrMethodUnavailable)
	assert.Equal(t, order.ProviderRedirect, s.Selected())
}

func TestSelector_SwitchRevokesPreviousTicket(t *testing.T) {
	rec := &successRecorder{}
	c := NewCompletion(rec.fn)
	card := NewCardHandler(&fakeGateway{}, nil, "pi_123_secret_x", decimal.NewFromInt(10), currency.CurrencyEUR)
	redirect := newRedirect(&fakeBackend{}, &fakeWidget{loaded: true})

	s := NewSelector(c, card, redirect)
	require.NoError(t, s.Start(context.Background()))
	cardTicket := card.currentTicket()
	require.NotNil(t, cardTicket)

	require.NoError(t, s.Select(context.Background(), order.ProviderRedirect))
	assert.Nil(t, card.currentTicket())
	assert.NotNil(t, redirect.currentTicket())

	require.ErrorIs(t, cardTicket.Fire(context.Background(), Outcome{Status: OutcomeSucceeded}), ErrTicketRevoked)
	_, err := card.SubmitCardPayment(context.Background(), CardForm{PaymentMethod: "pm_card_visa"})
	require.ErrorIs(t, err, ErrNotMounted)
	assert.Zero(t, rec.count())
}

func TestSelector_RejectsSwitchWhilePaying(t *testing.T) {
	c := NewCompletion((&successRecorder{}).fn)
	gw := &fakeGateway{block: make(chan struct{})}
	card := NewCardHandler(gw, nil, "pi_123_secret_x", decimal.NewFromInt(10), currency.CurrencyEUR)
	redirect := newRedirect(&fakeBackend{}, &fakeWidget{loaded: true})

	s := NewSelector(c, card, redirect)
	require.NoError(t, s.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Pay(context.Background(), Input{Card: &CardForm{PaymentMethod: "pm_card_visa"}})
	}()
	require.Eventually(t, card.Busy, timeout, tick)

	require.ErrorIs(t, s.Select(context.Background(), order.ProviderRedirect), ErrPaymentInFlight)
	assert.Equal(t, order.ProviderCard, s.Selected())

	close(gw.block)
	<-done
}

func TestSelector_FailedMountLeavesNothingMounted(t *testing.T) {
	c := NewCompletion((&successRecorder{}).fn)
	card := NewCardHandler(&fakeGateway{}, nil, "pi_123_secret_x", decimal.NewFromInt(10), currency.CurrencyEUR)
	redirect := newRedirect(&fakeBackend{}, &fakeWidget{loaded: false})

	s := NewSelector(c, card, redirect)
	require.NoError(t, s.Start(context.Background()))

	require.ErrorIs(t, s.Select(context.Background(), order.ProviderRedirect), ErrScriptLoad)
	assert.Nil(t, s.Current())
	assert.Nil(t, card.currentTicket())

	require.NoError(t, s.Select(context.Background(), order.ProviderCard))
	assert.Same(t, card, s.Current())
}
