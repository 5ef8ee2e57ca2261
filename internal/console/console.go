package console

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRowBusy             = errors.New("another operation on this order is in progress")
	ErrUnknownOrder        = errors.New("order is not in the list")
	ErrOrderCancelled      = errors.New("order is cancelled")
	ErrMissingPaymentInfo  = errors.New("missing payment information")
	ErrAlreadyRefunded     = errors.New("order is already refunded")
	ErrNotShipped          = errors.New("order is not shipped")
	ErrMissingTrackingCode = errors.New("missing tracking code")
)

// API is the order part of the storefront HTTP API.
type API interface {
	ListOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error)
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	PatchOrder(ctx context.Context, id string, patch order.Patch) (*order.Order, error)
	CancelOrder(ctx context.Context, id, reason string) (*order.Order, error)
	RefundOrder(ctx context.Context, id, paymentIntentID string) (*order.Order, error)
	NotifyShipping(ctx context.Context, id string) (string, error)
}

type row struct {
	order order.Order
	busy  bool
}

// Console is the operator's working list of orders. Local edits are applied
// optimistically and replaced by the server's answer, or rolled back on failure.
type Console struct {
	api API

	mu   sync.Mutex
	ids  []string
	rows map[string]*row
}

// New creates an empty console.
func New(api API) *Console {
	return &Console{
		api:  api,
		rows: map[string]*row{},
	}
}

// Refresh replaces the list with the server's current orders.
func (c *Console) Refresh(ctx context.Context, filter order.QueryOrdersModel) error {
	orders, err := c.api.ListOrders(ctx, filter)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	busy := map[string]*row{}
	for id, r := range c.rows {
		if r.busy {
			busy[id] = r
		}
	}

	c.ids = make([]string, 0, len(orders))
	c.rows = make(map[string]*row, len(orders))
	for _, o := range orders {
		c.ids = append(c.ids, o.ID)
		if r, ok := busy[o.ID]; ok {
			c.rows[o.ID] = r
			continue
		}
		c.rows[o.ID] = &row{order: o}
	}

	return nil
}

// Reload refetches the given orders in parallel and adds them to the list.
func (c *Console) Reload(ctx context.Context, ids ...string) error {
	fetched := make([]*order.Order, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			o, err := c.api.GetOrder(gctx, id)
			if err != nil {
				return err
			}
			fetched[i] = o

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range fetched {
		r, ok := c.rows[o.ID]
		if !ok {
			c.ids = append(c.ids, o.ID)
			c.rows[o.ID] = &row{order: *o}
			continue
		}
		if !r.busy {
			r.order = *o
		}
	}

	return nil
}

// Orders returns a snapshot of the list.
func (c *Console) Orders() []order.Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]order.Order, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.rows[id].order)
	}

	return out
}

// Order returns one row.
func (c *Console) Order(id string) (order.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rows[id]
	if !ok {
		return order.Order{}, false
	}

	return r.order, true
}

// Busy reports whether a mutation on the row is in flight.
func (c *Console) Busy(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rows[id]

	return ok && r.busy
}

// Transition moves a non-cancelled order to status.
func (c *Console) Transition(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	if !status.IsTransitionTarget() {
		return nil, order.ErrInvalidStatus
	}

	return c.mutate(ctx, id,
		func(o *order.Order) error {
			if o.Status.IsTerminal() {
				return ErrOrderCancelled
			}
			o.Status = status

			return nil
		},
		func(ctx context.Context) (*order.Order, error) {
			return c.api.PatchOrder(ctx, id, order.Patch{Status: &status})
		},
	)
}

// SetTrackingCode assigns a tracking code.
func (c *Console) SetTrackingCode(ctx context.Context, id, code string) (*order.Order, error) {
	return c.mutate(ctx, id,
		func(o *order.Order) error {
			o.TrackingCode = code

			return nil
		},
		func(ctx context.Context) (*order.Order, error) {
			return c.api.PatchOrder(ctx, id, order.Patch{TrackingCode: &code})
		},
	)
}

// Cancel cancels an order.
func (c *Console) Cancel(ctx context.Context, id, reason string) (*order.Order, error) {
	return c.mutate(ctx, id,
		func(o *order.Order) error {
			if o.Status.IsTerminal() {
				return ErrOrderCancelled
			}
			o.Status = order.StatusCancelled
			o.CancellationReason = reason

			return nil
		},
		func(ctx context.Context) (*order.Order, error) {
			return c.api.CancelOrder(ctx, id, reason)
		},
	)
}

// Refund refunds the order's charge. It is never retried on failure.
func (c *Console) Refund(ctx context.Context, id string) (*order.Order, error) {
	var intentID string

	return c.mutate(ctx, id,
		func(o *order.Order) error {
			if !o.HasPaymentInfo() {
				return ErrMissingPaymentInfo
			}
			if o.Refunded {
				return ErrAlreadyRefunded
			}
			intentID = o.PaymentIntentID
			o.Refunded = true

			return nil
		},
		func(ctx context.Context) (*order.Order, error) {
			return c.api.RefundOrder(ctx, id, intentID)
		},
	)
}

// NotifyShipping sends the shipping notification and returns the address notified.
func (c *Console) NotifyShipping(ctx context.Context, id string) (string, error) {
	r, release, err := c.acquire(id)
	if err != nil {
		return "", err
	}
	defer release()

	c.mu.Lock()
	o := r.order
	c.mu.Unlock()

	if o.Status != order.StatusShipped {
		return "", ErrNotShipped
	}
	if o.TrackingCode == "" {
		return "", ErrMissingTrackingCode
	}

	return c.api.NotifyShipping(ctx, id)
}

// mutate runs local checks, applies the optimistic edit, calls the server and
// reconciles the row with its answer.
func (c *Console) mutate(
	ctx context.Context,
	id string,
	apply func(o *order.Order) error,
	call func(ctx context.Context) (*order.Order, error),
) (*order.Order, error) {
	r, release, err := c.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	c.mu.Lock()
	snapshot := r.order
	edited := r.order
	if err := apply(&edited); err != nil {
		c.mu.Unlock()

		return nil, err
	}
	r.order = edited
	c.mu.Unlock()

	updated, err := call(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		r.order = snapshot
		slog.Warn("Order update rolled back", "order_id", id, "error", err)

		return nil, err
	}
	r.order = *updated

	return updated, nil
}

func (c *Console) acquire(id string) (*row, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rows[id]
	if !ok {
		return nil, nil, ErrUnknownOrder
	}
	if r.busy {
		return nil, nil, ErrRowBusy
	}
	r.busy = true

	return r, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		r.busy = false
	}, nil
}
