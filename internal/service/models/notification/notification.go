package notification

import "time"

// ShippingNotification is the message handed to the mailer when an order ships.
type ShippingNotification struct {
	OrderID      string    `json:"orderId"`
	To           string    `json:"to"`
	TrackingCode string    `json:"trackingCode"`
	RequestedAt  time.Time `json:"requestedAt"`
}
