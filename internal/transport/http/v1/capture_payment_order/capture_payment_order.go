package capturepaymentorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/corray333/backend-labs/storefront/internal/transport/http/v1/respond"
)

// service is an interface for the service layer.
type service interface {
	CaptureOrder(ctx context.Context, providerOrderID string) (payment.CaptureResult, error)
}

type request struct {
	OrderID string `json:"orderID" validate:"required"`
}

// CapturePaymentOrder handles POST /payment/capture-order.
func CapturePaymentOrder(w http.ResponseWriter, r *http.Request, service service) {
	var req request
	if !respond.Decode(w, r, &req) {
		return
	}

	res, err := service.CaptureOrder(r.Context(), req.OrderID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, res)
}
