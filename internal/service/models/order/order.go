package order

import (
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/orderitem"
	"github.com/shopspring/decimal"
)

// Provider identifies which payment provider charged the order.
type Provider string

const (
	ProviderCard     Provider = "card"
	ProviderRedirect Provider = "redirect"
)

// Address is a structured postal address.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Order represents a storefront order.
type Order struct {
	ID                 string                `json:"id"`
	Items              []orderitem.OrderItem `json:"items"`
	Amount             decimal.Decimal       `json:"amount"`
	Currency           currency.Currency     `json:"currency"`
	Status             Status                `json:"status"`
	PaymentProvider    Provider              `json:"paymentProvider,omitempty"`
	PaymentIntentID    string                `json:"paymentIntentId,omitempty"`
	CustomerEmail      string                `json:"customerEmail,omitempty"`
	TrackingCode       string                `json:"trackingCode,omitempty"`
	CancelledAt        *time.Time            `json:"cancelledAt,omitempty"`
	CancelledBy        string                `json:"cancelledBy,omitempty"`
	CancellationReason string                `json:"cancellationReason,omitempty"`
	Refunded           bool                  `json:"refunded"`
	RefundedAt         *time.Time            `json:"refundedAt,omitempty"`
	ShippingAddress    *Address              `json:"shippingAddress,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

// HasPaymentInfo reports whether the order carries a provider charge reference.
func (o *Order) HasPaymentInfo() bool {
	return o.PaymentIntentID != ""
}

// CanNotifyShipping reports whether a shipping notification may be sent.
func (o *Order) CanNotifyShipping() bool {
	return o.Status == StatusShipped && o.TrackingCode != ""
}

// Total sums unit price times quantity over all items.
func Total(items []orderitem.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}

	return total.Round(2)
}
