package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	paypalsdk "github.com/plutov/paypal/v4"
	"github.com/spf13/viper"
)

const providerName = "paypal"

// Gateway creates, captures and refunds PayPal orders.
type Gateway struct {
	client *paypalsdk.Client
}

// MustNewGateway creates a gateway from PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET.
// Missing credentials yield nil: the redirect method is then unavailable.
func MustNewGateway(ctx context.Context) *Gateway {
	clientID := os.Getenv("PAYPAL_CLIENT_ID")
	secret := os.Getenv("PAYPAL_CLIENT_SECRET")
	if clientID == "" || secret == "" {
		return nil
	}

	apiBase := viper.GetString("payment.paypal.api_base")
	if apiBase == "" {
		apiBase = paypalsdk.APIBaseSandBox
	}

	c, err := paypalsdk.NewClient(clientID, secret, apiBase)
	if err != nil {
		panic(fmt.Sprintf("Failed to create PayPal client: %v", err))
	}

	if _, err := c.GetAccessToken(ctx); err != nil {
		panic(fmt.Sprintf("Failed to authenticate with PayPal: %v", err))
	}

	return &Gateway{client: c}
}

// CreateOrder creates an order with intent CAPTURE for the quoted amount.
func (g *Gateway) CreateOrder(ctx context.Context, quote payment.Quote, reference string) (payment.ProviderOrder, error) {
	units := []paypalsdk.PurchaseUnitRequest{
		{
			ReferenceID: reference,
			Amount: &paypalsdk.PurchaseUnitAmount{
				Currency: quote.Currency.String(),
				Value:    quote.Amount.StringFixed(2),
			},
		},
	}

	o, err := g.client.CreateOrder(ctx, paypalsdk.OrderIntentCapture, units, nil, nil)
	if err != nil {
		return payment.ProviderOrder{}, convertError(err)
	}

	return payment.ProviderOrder{ID: o.ID, Status: o.Status}, nil
}

// CaptureOrder captures an approved order.
func (g *Gateway) CaptureOrder(ctx context.Context, providerOrderID string) (payment.CaptureResult, error) {
	resp, err := g.client.CaptureOrder(ctx, providerOrderID, paypalsdk.CaptureOrderRequest{})
	if err != nil {
		return payment.CaptureResult{}, convertError(err)
	}

	result := payment.CaptureResult{
		Success: resp.Status == payment.CaptureStatusCompleted,
		OrderID: resp.ID,
		Status:  resp.Status,
	}
	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, c := range unit.Payments.Captures {
			result.CaptureID = c.ID
		}
	}

	return result, nil
}

// RefundCapture refunds a completed capture in full.
func (g *Gateway) RefundCapture(ctx context.Context, captureID string) (string, error) {
	resp, err := g.client.RefundCapture(ctx, captureID, paypalsdk.RefundCaptureRequest{})
	if err != nil {
		return "", convertError(err)
	}

	return resp.ID, nil
}

func convertError(err error) error {
	var resp *paypalsdk.ErrorResponse
	if !errors.As(err, &resp) {
		return &payment.ProviderError{
			Provider: providerName,
			Kind:     payment.KindNetwork,
			Message:  err.Error(),
			Err:      err,
		}
	}

	issue := resp.Name
	if len(resp.Details) > 0 && resp.Details[0].Issue != "" {
		issue = resp.Details[0].Issue
	}

	status := 0
	if resp.Response != nil {
		status = resp.Response.StatusCode
	}

	return &payment.ProviderError{
		Provider: providerName,
		Kind:     kindOf(issue, status),
		Code:     issue,
		Message:  resp.Message,
		Err:      err,
	}
}

func kindOf(issue string, httpStatus int) payment.ErrorKind {
	switch issue {
	case "ORDER_ALREADY_CAPTURED", "CAPTURE_FULLY_REFUNDED", "DUPLICATE_INVOICE_ID":
		return payment.KindConflict
	case "INSTRUMENT_DECLINED", "PAYER_ACTION_REQUIRED", "TRANSACTION_REFUSED":
		return payment.KindDecline
	case "ORDER_NOT_APPROVED", "INVALID_PARAMETER_VALUE", "MISSING_REQUIRED_PARAMETER",
		"DECIMAL_PRECISION", "AMOUNT_MISMATCH", "INVALID_CURRENCY_CODE":
		return payment.KindValidation
	case "CAPTURE_NOT_COMPLETED", "REFUND_NOT_PERMITTED_DUE_TO_CHARGEBACK", "TRANSACTION_REFUSED_PAYEE_PREFERENCE":
		return payment.KindNoCharge
	case "RESOURCE_NOT_FOUND", "INVALID_RESOURCE_ID":
		return payment.KindNotFound
	}

	switch httpStatus {
	case http.StatusUnauthorized, http.StatusForbidden:
		return payment.KindAuthentication
	case http.StatusNotFound:
		return payment.KindNotFound
	case http.StatusConflict:
		return payment.KindConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return payment.KindValidation
	}
	if httpStatus >= http.StatusInternalServerError {
		return payment.KindNetwork
	}

	return payment.KindUnknown
}
