package order

// QueryOrdersModel represents filter parameters for querying orders
type QueryOrdersModel struct {
	Ids      []string `json:"ids,omitempty"`
	Statuses []Status `json:"statuses,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}

// Patch is a partial operator update of an order.
type Patch struct {
	Status       *Status `json:"status,omitempty"`
	TrackingCode *string `json:"trackingCode,omitempty"`
}
