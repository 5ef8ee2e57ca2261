package refundorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/transport/http/v1/respond"
	"github.com/go-chi/chi/v5"
)

// service is an interface for the service layer.
type service interface {
	Refund(ctx context.Context, id, paymentIntentID string) (*order.Order, error)
}

type request struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

// RefundOrder handles POST /orders/{id}/refund.
func RefundOrder(w http.ResponseWriter, r *http.Request, service service) {
	var req request
	if r.ContentLength != 0 && !respond.Decode(w, r, &req) {
		return
	}

	o, err := service.Refund(r.Context(), chi.URLParam(r, "id"), req.PaymentIntentID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
