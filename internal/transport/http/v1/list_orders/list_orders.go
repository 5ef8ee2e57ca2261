package listorders

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/transport/http/v1/respond"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// service is an interface for the service layer.
type service interface {
	List(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error)
}

// parseList splits repeated and comma-separated query values.
func parseList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

// ListOrders handles GET /orders?status=&ids=&limit=&offset=.
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	query := r.URL.Query()

	filter := order.QueryOrdersModel{
		Ids:   parseList(query["ids"]),
		Limit: defaultLimit,
	}

	for _, s := range parseList(query["status"]) {
		status, err := order.ParseStatus(s)
		if err != nil {
			respond.Message(w, http.StatusBadRequest, "invalid status "+s)

			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			respond.Message(w, http.StatusBadRequest, "invalid limit")

			return
		}
		filter.Limit = min(limit, maxLimit)
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			respond.Message(w, http.StatusBadRequest, "invalid offset")

			return
		}
		filter.Offset = offset
	}

	orders, err := service.List(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, orders)
}
