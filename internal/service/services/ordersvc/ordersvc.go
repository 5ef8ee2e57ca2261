package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/storefront/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/storefront/internal/dal/postgres"
	"github.com/corray333/backend-labs/storefront/internal/dal/uow"
	"github.com/corray333/backend-labs/storefront/internal/service/models/notification"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var (
	ErrOrderCancelled      = errors.New("order is cancelled")
	ErrMissingPaymentInfo  = errors.New("missing payment information")
	ErrPaymentMismatch     = errors.New("payment intent does not belong to the order")
	ErrAlreadyRefunded     = errors.New("order is already refunded")
	ErrNoCapturableCharge  = errors.New("order has no capturable charge")
	ErrNotShipped          = errors.New("order is not shipped")
	ErrMissingTrackingCode = errors.New("missing tracking code")
	ErrMissingRecipient    = errors.New("order has no customer email")
	ErrEmptyOrder          = errors.New("order has no items")
	ErrRefundUnavailable   = errors.New("refunds are not configured")
	ErrNotifierUnavailable = errors.New("shipping notifications are not configured")
)

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
}

type refunder interface {
	Refund(ctx context.Context, provider order.Provider, reference string) error
}

type shippingNotifier interface {
	SendShippingNotification(ctx context.Context, msg notification.ShippingNotification) (string, error)
}

// OrderService is the authority over order lifecycle state.
type OrderService struct {
	newUOW   func() unitOfWork
	refunder refunder
	notifier shippingNotifier
	now      func() time.Time
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("ordersvc: postgres client is required")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithRefunder sets the provider refund router.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRefunder(r refunder) option {
	return func(s *OrderService) {
		s.refunder = r
	}
}

// WithShippingNotifier sets the shipping notification sender.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithShippingNotifier(n shippingNotifier) option {
	return func(s *OrderService) {
		s.notifier = n
	}
}

// Create persists a new order with its items. A zero amount is computed from the items.
func (s *OrderService) Create(ctx context.Context, o order.Order) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.Create")
	defer span.End()

	if len(o.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	now := s.now()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = order.StatusPending
	}
	if o.Amount.IsZero() {
		o.Amount = order.Total(o.Items)
	}
	o.CreatedAt = now
	o.UpdatedAt = now

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer work.Rollback(ctx) //nolint:errcheck

	if err := work.OrderRepository().Insert(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	items := make([]orderitem.OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.OrderID = o.ID
		items[i] = item
	}
	items, err := work.OrderItemRepository().BulkInsert(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order items: %w", err)
	}
	o.Items = items

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	slog.Info("Order created",
		"order_id", o.ID,
		"amount", o.Amount.StringFixed(2),
		"provider", o.PaymentProvider,
	)

	return &o, nil
}

// Get returns an order with its items.
func (s *OrderService) Get(ctx context.Context, id string) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.Get")
	defer span.End()

	work := s.newUOW()

	o, err := work.OrderRepository().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, work, []*order.Order{o}); err != nil {
		return nil, err
	}

	return o, nil
}

// List returns orders matching the filter, newest first.
func (s *OrderService) List(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.List")
	defer span.End()

	work := s.newUOW()

	orders, err := work.OrderRepository().Query(ctx, &filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	refs := make([]*order.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := s.attachItems(ctx, work, refs); err != nil {
		return nil, err
	}

	return orders, nil
}

// Transition sets the status of a non-cancelled order. Moves between the
// non-cancelled statuses are not restricted.
func (s *OrderService) Transition(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.Transition")
	defer span.End()

	if !status.IsTransitionTarget() {
		return nil, order.ErrInvalidStatus
	}

	return s.mutate(ctx, id, func(o *order.Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderCancelled
		}
		o.Status = status

		return nil
	})
}

// Cancel moves an order to the terminal cancelled status.
func (s *OrderService) Cancel(ctx context.Context, id, by, reason string) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.Cancel")
	defer span.End()

	return s.mutate(ctx, id, func(o *order.Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderCancelled
		}

		now := s.now()
		o.Status = order.StatusCancelled
		o.CancelledAt = &now
		o.CancelledBy = by
		o.CancellationReason = reason

		return nil
	})
}

// SetTrackingCode assigns a tracking code regardless of status.
func (s *OrderService) SetTrackingCode(ctx context.Context, id, code string) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.SetTrackingCode")
	defer span.End()

	return s.mutate(ctx, id, func(o *order.Order) error {
		o.TrackingCode = code

		return nil
	})
}

// Apply applies an operator patch: tracking code first, then status.
func (s *OrderService) Apply(ctx context.Context, id string, patch order.Patch) (*order.Order, error) {
	if patch.Status != nil && !patch.Status.IsTransitionTarget() {
		return nil, order.ErrInvalidStatus
	}

	return s.mutate(ctx, id, func(o *order.Order) error {
		if patch.Status != nil && o.Status.IsTerminal() {
			return ErrOrderCancelled
		}
		if patch.TrackingCode != nil {
			o.TrackingCode = *patch.TrackingCode
		}
		if patch.Status != nil {
			o.Status = *patch.Status
		}

		return nil
	})
}

// Refund refunds the order's charge through its provider. paymentIntentID may be
// empty, in which case the stored reference is used. Failed refunds are not retried.
func (s *OrderService) Refund(ctx context.Context, id, paymentIntentID string) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.Refund")
	defer span.End()

	if s.refunder == nil {
		return nil, ErrRefundUnavailable
	}

	return s.mutate(ctx, id, func(o *order.Order) error {
		if !o.HasPaymentInfo() {
			return ErrMissingPaymentInfo
		}
		if paymentIntentID != "" && paymentIntentID != o.PaymentIntentID {
			return ErrPaymentMismatch
		}
		if o.Refunded {
			return ErrAlreadyRefunded
		}

		err := s.refunder.Refund(ctx, o.PaymentProvider, o.PaymentIntentID)
		switch payment.KindOf(err) {
		case payment.KindConflict:
			return ErrAlreadyRefunded
		case payment.KindNoCharge:
			return ErrNoCapturableCharge
		}
		if err != nil {
			slog.Error("Refund failed",
				"order_id", o.ID,
				"provider", o.PaymentProvider,
				"error", err,
			)

			return fmt.Errorf("failed to refund order: %w", err)
		}

		now := s.now()
		o.Refunded = true
		o.RefundedAt = &now

		return nil
	})
}

// NotifyShipping sends the shipping notification and returns the address it went to.
func (s *OrderService) NotifyShipping(ctx context.Context, id string) (string, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.NotifyShipping")
	defer span.End()

	o, err := s.newUOW().OrderRepository().Get(ctx, id)
	if err != nil {
		return "", err
	}

	if o.Status != order.StatusShipped {
		return "", ErrNotShipped
	}
	if o.TrackingCode == "" {
		return "", ErrMissingTrackingCode
	}
	if o.CustomerEmail == "" {
		return "", ErrMissingRecipient
	}
	if s.notifier == nil {
		return "", ErrNotifierUnavailable
	}

	sentTo, err := s.notifier.SendShippingNotification(ctx, notification.ShippingNotification{
		OrderID:      o.ID,
		To:           o.CustomerEmail,
		TrackingCode: o.TrackingCode,
		RequestedAt:  s.now(),
	})
	if err != nil {
		return "", err
	}

	return sentTo, nil
}

// mutate locks the order row, applies fn and stores the result in one transaction.
func (s *OrderService) mutate(ctx context.Context, id string, fn func(o *order.Order) error) (*order.Order, error) {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer work.Rollback(ctx) //nolint:errcheck

	o, err := work.OrderRepository().GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(o); err != nil {
		return nil, err
	}
	o.UpdatedAt = s.now()

	if err := work.OrderRepository().Update(ctx, *o); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if err := s.attachItems(ctx, work, []*order.Order{o}); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	return o, nil
}

func (s *OrderService) attachItems(ctx context.Context, work unitOfWork, orders []*order.Order) error {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	items, err := work.OrderItemRepository().QueryByOrderIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}

	for _, o := range orders {
		o.Items = []orderitem.OrderItem{}
		for _, item := range items {
			if item.OrderID == o.ID {
				o.Items = append(o.Items, item)
			}
		}
	}

	return nil
}
