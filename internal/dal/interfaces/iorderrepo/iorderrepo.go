package iorderrepo

import (
	"context"
	"errors"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
)

// ErrNotFound is returned when no order matches the id.
var ErrNotFound = errors.New("order not found")

// IOrderRepository is an interface for order postgres repository.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) error
	Get(ctx context.Context, id string) (*order.Order, error)
	GetForUpdate(ctx context.Context, id string) (*order.Order, error)
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
	Update(ctx context.Context, o order.Order) error
}
