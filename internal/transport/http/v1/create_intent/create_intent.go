package createintent

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/corray333/backend-labs/storefront/internal/transport/http/v1/respond"
)

// service is an interface for the service layer.
type service interface {
	CreateIntent(ctx context.Context, req payment.CheckoutRequest) (payment.Intent, error)
}

// CreateIntent handles POST /payment/intent.
func CreateIntent(w http.ResponseWriter, r *http.Request, service service) {
	var req payment.CheckoutRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	intent, err := service.CreateIntent(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, intent)
}
