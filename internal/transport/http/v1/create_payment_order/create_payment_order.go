package createpaymentorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/corray333/backend-labs/storefront/internal/transport/http/v1/respond"
)

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, req payment.CheckoutRequest) (string, error)
}

type response struct {
	OrderID string `json:"orderID"`
}

// CreatePaymentOrder handles POST /payment/create-order. The amount is computed
// on the server from the cart.
func CreatePaymentOrder(w http.ResponseWriter, r *http.Request, service service) {
	var req payment.CheckoutRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	id, err := service.CreateOrder(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, response{OrderID: id})
}
