package catalog

import (
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/shopspring/decimal"
)

// Product is the priced catalog entry an order line refers to.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Currency currency.Currency
	Active   bool
}

// Coupon is a percentage discount code.
type Coupon struct {
	Code       string
	PercentOff decimal.Decimal
	Active     bool
	ExpiresAt  *time.Time
}

// Usable reports whether the coupon may be applied at the given time.
func (c Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}

	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

// SavedAddress is a buyer address book entry.
type SavedAddress struct {
	ID      string
	Email   string
	Address order.Address
}
