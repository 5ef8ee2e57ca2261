package orderitem

import (
	"github.com/shopspring/decimal"
)

// Customization holds jersey personalisation chosen by the buyer.
type Customization struct {
	Name          string   `json:"name,omitempty"`
	Number        string   `json:"number,omitempty"`
	Size          string   `json:"size,omitempty"`
	Patches       []string `json:"patches,omitempty"`
	PlayerEdition bool     `json:"playerEdition,omitempty"`
	LongSleeve    bool     `json:"longSleeve,omitempty"`
	RetroEdition  bool     `json:"retroEdition,omitempty"`
}

// OrderItem represents an item within an order
type OrderItem struct {
	ID            int64           `json:"id,omitempty"`
	OrderID       string          `json:"orderId,omitempty"`
	ProductID     string          `json:"productId"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Quantity      int             `json:"quantity"`
	Customization *Customization  `json:"customization,omitempty"`
}

// LineTotal returns unit price multiplied by quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
