package createorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/corray333/backend-labs/storefront/internal/transport/http/v1/respond"
)

// service is an interface for the service layer.
type service interface {
	RecordIntentPayment(ctx context.Context, req payment.RecordRequest) (*order.Order, error)
}

// CreateOrder records an order paid through the card provider.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	var req payment.RecordRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	o, err := service.RecordIntentPayment(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusCreated, o)
}
