package updateorder

import (
	"context"
	"net/http"
	"strings"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/transport/http/v1/respond"
	"github.com/go-chi/chi/v5"
)

// service is an interface for the service layer.
type service interface {
	Apply(ctx context.Context, id string, patch order.Patch) (*order.Order, error)
}

type request struct {
	Status       *string `json:"status,omitempty"       validate:"omitempty,oneof=pending processing shipped delivered"`
	TrackingCode *string `json:"trackingCode,omitempty" validate:"omitempty,max=64"`
}

// UpdateOrder handles PATCH /orders/{id} with a status and/or tracking code.
func UpdateOrder(w http.ResponseWriter, r *http.Request, service service) {
	var req request
	if !respond.Decode(w, r, &req) {
		return
	}
	if req.Status == nil && req.TrackingCode == nil {
		respond.Message(w, http.StatusBadRequest, "nothing to update")

		return
	}

	var patch order.Patch
	if req.Status != nil {
		status := order.Status(*req.Status)
		patch.Status = &status
	}
	if req.TrackingCode != nil {
		code := strings.TrimSpace(*req.TrackingCode)
		patch.TrackingCode = &code
	}

	o, err := service.Apply(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
