package stripe

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

const providerName = "stripe"

var errStillRequiresAction = errors.New("payment intent still requires action")

// Gateway talks to Stripe PaymentIntents and Refunds.
type Gateway struct {
	api            *client.API
	returnURL      string
	actionTimeout  time.Duration
	actionInterval time.Duration
}

// MustNewGateway creates a gateway from STRIPE_SECRET_KEY. An empty key yields nil:
// the card method is then unavailable.
func MustNewGateway(returnURL string, actionTimeout time.Duration) *Gateway {
	key := os.Getenv("STRIPE_SECRET_KEY")
	if key == "" {
		return nil
	}

	if actionTimeout <= 0 {
		actionTimeout = 5 * time.Minute
	}

	return &Gateway{
		api:            client.New(key, nil),
		returnURL:      returnURL,
		actionTimeout:  actionTimeout,
		actionInterval: 2 * time.Second,
	}
}

// IntentIDFromSecret extracts the intent id from a client secret (pi_X_secret_Y).
func IntentIDFromSecret(clientSecret string) string {
	if i := strings.Index(clientSecret, "_secret_"); i > 0 {
		return clientSecret[:i]
	}

	return clientSecret
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// CreateIntent creates a PaymentIntent for the quoted amount.
func (g *Gateway) CreateIntent(ctx context.Context, quote payment.Quote, idempotencyKey string) (payment.Intent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(toMinorUnits(quote.Amount)),
		Currency: stripego.String(quote.Currency.Lower()),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return payment.Intent{}, convertError(err)
	}

	return payment.Intent{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       quote.Amount,
		Currency:     quote.Currency,
	}, nil
}

// RetrieveIntent returns the current status and amount of an intent.
func (g *Gateway) RetrieveIntent(ctx context.Context, intentID string) (payment.IntentStatus, decimal.Decimal, error) {
	params := &stripego.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return "", decimal.Zero, convertError(err)
	}

	return payment.IntentStatus(pi.Status), decimal.New(pi.Amount, -2), nil
}

// ConfirmCardPayment confirms the intent identified by clientSecret with a payment method.
func (g *Gateway) ConfirmCardPayment(
	ctx context.Context,
	clientSecret string,
	paymentMethod string,
) (payment.CardConfirmation, error) {
	params := &stripego.PaymentIntentConfirmParams{
		PaymentMethod: stripego.String(paymentMethod),
	}
	if g.returnURL != "" {
		params.ReturnURL = stripego.String(g.returnURL)
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Confirm(IntentIDFromSecret(clientSecret), params)
	if err != nil {
		return payment.CardConfirmation{}, convertError(err)
	}

	return confirmationFromIntent(pi), nil
}

// HandleCardAction waits for the buyer to finish the additional authentication
// step and returns the resulting intent state.
func (g *Gateway) HandleCardAction(ctx context.Context, clientSecret string) (payment.CardConfirmation, error) {
	id := IntentIDFromSecret(clientSecret)
	var result payment.CardConfirmation

	backoff := retry.WithMaxDuration(g.actionTimeout, retry.NewConstant(g.actionInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		params := &stripego.PaymentIntentParams{}
		params.Context = ctx

		pi, err := g.api.PaymentIntents.Get(id, params)
		if err != nil {
			return convertError(err)
		}

		result = confirmationFromIntent(pi)
		if result.Status == payment.IntentRequiresAction {
			return retry.RetryableError(errStillRequiresAction)
		}

		return nil
	})
	if errors.Is(err, errStillRequiresAction) {
		return result, nil
	}
	if err != nil {
		return payment.CardConfirmation{}, err
	}

	return result, nil
}

// Refund refunds the full charge of a succeeded intent.
func (g *Gateway) Refund(ctx context.Context, intentID string) (string, error) {
	status, _, err := g.RetrieveIntent(ctx, intentID)
	if err != nil {
		return "", err
	}
	if status != payment.IntentSucceeded {
		return "", &payment.ProviderError{
			Provider: providerName,
			Kind:     payment.KindNoCharge,
			Code:     string(status),
			Message:  "payment intent has no captured charge",
		}
	}

	params := &stripego.RefundParams{
		PaymentIntent: stripego.String(intentID),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + intentID)

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return "", convertError(err)
	}

	return r.ID, nil
}

func confirmationFromIntent(pi *stripego.PaymentIntent) payment.CardConfirmation {
	c := payment.CardConfirmation{
		IntentID: pi.ID,
		Status:   payment.IntentStatus(pi.Status),
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		c.NextActionURL = pi.NextAction.RedirectToURL.URL
	}
	if pi.LastPaymentError != nil {
		c.DeclineMessage = pi.LastPaymentError.Msg
	}

	return c
}

// convertError maps a Stripe SDK error onto a provider-neutral error.
func convertError(err error) error {
	var se *stripego.Error
	if !errors.As(err, &se) {
		return &payment.ProviderError{
			Provider: providerName,
			Kind:     payment.KindNetwork,
			Message:  err.Error(),
			Err:      err,
		}
	}

	return &payment.ProviderError{
		Provider: providerName,
		Kind:     kindOf(string(se.Type), string(se.Code), se.HTTPStatusCode),
		Code:     string(se.Code),
		Message:  se.Msg,
		Err:      err,
	}
}

func kindOf(errType, code string, httpStatus int) payment.ErrorKind {
	switch code {
	case "charge_already_refunded", "payment_intent_unexpected_state":
		return payment.KindConflict
	case "incorrect_number", "invalid_number", "invalid_expiry_month", "invalid_expiry_year",
		"incorrect_cvc", "invalid_cvc", "incorrect_zip", "amount_too_small", "amount_too_large":
		return payment.KindValidation
	case "authentication_required", "payment_intent_authentication_failure":
		return payment.KindAuthentication
	case "resource_missing":
		return payment.KindNotFound
	}

	switch errType {
	case "card_error":
		return payment.KindDecline
	case "invalid_request_error":
		if httpStatus == 401 {
			return payment.KindAuthentication
		}

		return payment.KindValidation
	case "api_error", "api_connection_error":
		return payment.KindNetwork
	}

	return payment.KindUnknown
}
