package payment

import (
	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/orderitem"
	"github.com/shopspring/decimal"
)

// CartItem is what the buyer put in the cart. Prices are never taken from it.
type CartItem struct {
	ProductID     string                   `json:"productId"     validate:"required"`
	Quantity      int                      `json:"quantity"      validate:"gt=0,lte=50"`
	Customization *orderitem.Customization `json:"customization,omitempty"`
}

// CheckoutRequest is the input of both intent and provider order creation.
type CheckoutRequest struct {
	Items         []CartItem `json:"items"         validate:"required,min=1,dive"`
	AddressID     string     `json:"addressId"`
	Coupon        string     `json:"coupon,omitempty"`
	CustomerEmail string     `json:"customerEmail" validate:"omitempty,email"`
}

// Quote is the authoritative charge computed on the server.
type Quote struct {
	Items           []orderitem.OrderItem `json:"items"`
	Amount          decimal.Decimal       `json:"amount"`
	Currency        currency.Currency     `json:"currency"`
	Discount        decimal.Decimal       `json:"discount"`
	Coupon          string                `json:"coupon,omitempty"`
	CustomerEmail   string                `json:"customerEmail,omitempty"`
	ShippingAddress *order.Address        `json:"shippingAddress,omitempty"`
}

// Intent is what the card provider needs on the client side.
type Intent struct {
	IntentID     string            `json:"intentId"`
	ClientSecret string            `json:"clientSecret"`
	Amount       decimal.Decimal   `json:"amount"`
	Currency     currency.Currency `json:"currency"`
}

// ProviderOrder is an order created on the redirect provider side.
type ProviderOrder struct {
	ID     string
	Status string
}

// Capture statuses reported by the redirect provider.
const (
	CaptureStatusCompleted = "COMPLETED"
)

// CaptureResult is the outcome of capturing a provider order.
type CaptureResult struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"orderId,omitempty"`
	CaptureID string `json:"captureId,omitempty"`
	Status    string `json:"status,omitempty"`
}

// IntentStatus is the card provider's intent status.
type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentCanceled              IntentStatus = "canceled"
)

// IsPaid returns true if the provider accepted the charge.
func (s IntentStatus) IsPaid() bool {
	return s == IntentSucceeded || s == IntentProcessing
}

// RecordRequest asks the checkout collaborator to persist a paid order.
type RecordRequest struct {
	Items           []CartItem     `json:"items"           validate:"required,min=1,dive"`
	AddressID       string         `json:"addressId"`
	Coupon          string         `json:"coupon,omitempty"`
	CustomerEmail   string         `json:"customerEmail"   validate:"omitempty,email"`
	Provider        order.Provider `json:"provider"        validate:"oneof=card redirect"`
	PaymentIntentID string         `json:"paymentIntentId" validate:"required"`
}

// CardConfirmation is the intent state after a confirmation round.
type CardConfirmation struct {
	IntentID       string
	Status         IntentStatus
	NextActionURL  string
	DeclineMessage string
}
