package cancelorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/transport/http/v1/respond"
	"github.com/corray333/backend-labs/storefront/pkg/http/middleware/auth"
	"github.com/go-chi/chi/v5"
)

// service is an interface for the service layer.
type service interface {
	Cancel(ctx context.Context, id, by, reason string) (*order.Order, error)
}

type request struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CancelOrder handles POST /orders/{id}/cancel. The operator is taken from the token.
func CancelOrder(w http.ResponseWriter, r *http.Request, service service) {
	var req request
	if r.ContentLength != 0 && !respond.Decode(w, r, &req) {
		return
	}

	o, err := service.Cancel(r.Context(), chi.URLParam(r, "id"), auth.Subject(r.Context()), req.Reason)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
