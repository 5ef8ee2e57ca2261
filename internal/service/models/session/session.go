package session

import (
	"errors"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("payment session not found")

// PaymentSession is the state of one checkout attempt. It is discarded on
// success or when the buyer leaves checkout.
type PaymentSession struct {
	ID                string             `json:"id"`
	Total             decimal.Decimal    `json:"total"`
	Currency          currency.Currency  `json:"currency"`
	Items             []payment.CartItem `json:"items"`
	ShippingAddressID string             `json:"shippingAddressId"`
	Coupon            string             `json:"coupon,omitempty"`
	CustomerEmail     string             `json:"customerEmail,omitempty"`
	ProviderInFlight  order.Provider     `json:"providerInFlight,omitempty"`
	LastError         string             `json:"lastError,omitempty"`
	PaymentReference  string             `json:"paymentReference,omitempty"`
	PaidWith          order.Provider     `json:"paidWith,omitempty"`
	OrderID           string             `json:"orderId,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// CouponApplied reports whether a coupon code was entered.
func (s *PaymentSession) CouponApplied() bool {
	return s.Coupon != ""
}
