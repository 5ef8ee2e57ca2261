package notifyshipping

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/storefront/internal/transport/http/v1/respond"
	"github.com/go-chi/chi/v5"
)

// service is an interface for the service layer.
type service interface {
	NotifyShipping(ctx context.Context, id string) (string, error)
}

type response struct {
	SentTo string `json:"sentTo"`
}

// NotifyShipping handles POST /orders/{id}/notify-shipping.
func NotifyShipping(w http.ResponseWriter, r *http.Request, service service) {
	sentTo, err := service.NotifyShipping(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, response{SentTo: sentTo})
}
