package ordersvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/storefront/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/notification"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	orders map[string]order.Order
	items  []orderitem.OrderItem
	nextID int64
}

func newMemStore(orders ...order.Order) *memStore {
	s := &memStore{orders: map[string]order.Order{}}
	for _, o := range orders {
		s.orders[o.ID] = o
	}

	return s
}

func (s *memStore) order(id string) order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.orders[id]
}

type fakeUOW struct {
	store     *memStore
	committed bool
}

func (u *fakeUOW) Begin(context.Context) error { return nil }

func (u *fakeUOW) Commit(context.Context) error {
	u.committed = true

	return nil
}

func (u *fakeUOW) Rollback(context.Context) error { return nil }

func (u *fakeUOW) OrderRepository() iorderrepo.IOrderRepository {
	return (*fakeOrderRepo)(u.store)
}

func (u *fakeUOW) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return (*fakeItemRepo)(u.store)
}

type fakeOrderRepo memStore

func (r *fakeOrderRepo) Insert(_ context.Context, o order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.Items = nil
	r.orders[o.ID] = o

	return nil
}

func (r *fakeOrderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, iorderrepo.ErrNotFound
	}

	return &o, nil
}

func (r *fakeOrderRepo) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.Get(ctx, id)
}

func (r *fakeOrderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		if len(filter.Statuses) > 0 && o.Status != filter.Statuses[0] {
			continue
		}
		out = append(out, o)
	}

	return out, nil
}

func (r *fakeOrderRepo) Update(_ context.Context, o order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; !ok {
		return iorderrepo.ErrNotFound
	}
	o.Items = nil
	r.orders[o.ID] = o

	return nil
}

type fakeItemRepo memStore

func (r *fakeItemRepo) BulkInsert(_ context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range items {
		r.nextID++
		items[i].ID = r.nextID
		r.items = append(r.items, items[i])
	}

	return items, nil
}

func (r *fakeItemRepo) QueryByOrderIDs(_ context.Context, ids []string) ([]orderitem.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []orderitem.OrderItem
	for _, item := range r.items {
		for _, id := range ids {
			if item.OrderID == id {
				out = append(out, item)
			}
		}
	}

	return out, nil
}

type fakeRefunder struct {
	calls int
	err   error
}

func (f *fakeRefunder) Refund(context.Context, order.Provider, string) error {
	f.calls++

	return f.err
}

type fakeNotifier struct {
	sent []notification.ShippingNotification
}

func (f *fakeNotifier) SendShippingNotification(_ context.Context, msg notification.ShippingNotification) (string, error) {
	f.sent = append(f.sent, msg)

	return msg.To, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *memStore, refund *fakeRefunder, notifier *fakeNotifier) *OrderService {
	s := &OrderService{
		newUOW: func() unitOfWork { return &fakeUOW{store: store} },
		now:    func() time.Time { return fixedNow },
	}
	if refund != nil {
		s.refunder = refund
	}
	if notifier != nil {
		s.notifier = notifier
	}

	return s
}

func testOrder(id string, status order.Status) order.Order {
	return order.Order{
		ID:              id,
		Amount:          decimal.RequireFromString("89.99"),
		Currency:        currency.CurrencyEUR,
		Status:          status,
		PaymentProvider: order.ProviderCard,
		CustomerEmail:   "fan@example.com",
		CreatedAt:       fixedNow.Add(-time.Hour),
	}
}

func TestTransition_CancelledIsTerminal(t *testing.T) {
	store := newMemStore(testOrder("o1", order.StatusCancelled))
	svc := newTestService(store, nil, nil)

	for _, target := range []order.Status{
		order.StatusPending, order.StatusProcessing, order.StatusShipped, order.StatusDelivered,
	} {
		_, err := svc.Transition(context.Background(), "o1", target)
		require.ErrorIs(t, err, ErrOrderCancelled)
	}

	assert.Equal(t, order.StatusCancelled, store.order("o1").Status)
}

func TestTransition_NonLinear(t *testing.T) {
	store := newMemStore(testOrder("o1", order.StatusDelivered))
	svc := newTestService(store, nil, nil)

	got, err := svc.Transition(context.Background(), "o1", order.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, fixedNow, got.UpdatedAt)
}

func TestTransition_CancelledIsNotATarget(t *testing.T) {
	store := newMemStore(testOrder("o1", order.StatusPending))
	svc := newTestService(store, nil, nil)

	_, err := svc.Transition(context.Background(), "o1", order.StatusCancelled)
	require.ErrorIs(t, err, order.ErrInvalidStatus)
}

func TestTransition_NotFound(t *testing.T) {
	svc := newTestService(newMemStore(), nil, nil)

	_, err := svc.Transition(context.Background(), "missing", order.StatusShipped)
	require.ErrorIs(t, err, iorderrepo.ErrNotFound)
}

func TestCancel(t *testing.T) {
	store := newMemStore(testOrder("o1", order.StatusProcessing))
	svc := newTestService(store, nil, nil)

	got, err := svc.Cancel(context.Background(), "o1", "admin@example.com", "out of stock")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, fixedNow, *got.CancelledAt)
	assert.Equal(t, "admin@example.com", got.CancelledBy)
	assert.Equal(t, "out of stock", got.CancellationReason)

	_, err = svc.Cancel(context.Background(), "o1", "admin@example.com", "again")
	require.ErrorIs(t, err, ErrOrderCancelled)
}

func TestRefund_Succeeds(t *testing.T) {
	o := testOrder("o1", order.StatusCancelled)
	o.PaymentIntentID = "pi_123"
	store := newMemStore(o)
	refund := &fakeRefunder{}
	svc := newTestService(store, refund, nil)

	got, err := svc.Refund(context.Background(), "o1", "pi_123")
	require.NoError(t, err)
	assert.True(t, got.Refunded)
	require.NotNil(t, got.RefundedAt)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.True(t, got.Amount.Equal(o.Amount))
	assert.Equal(t, 1, refund.calls)
}

func TestRefund_StatusUnchanged(t *testing.T) {
	o := testOrder("o1", order.StatusProcessing)
	o.PaymentIntentID = "pi_123"
	store := newMemStore(o)
	svc := newTestService(store, &fakeRefunder{}, nil)

	got, err := svc.Refund(context.Background(), "o1", "")
	require.NoError(t, err)
	assert.True(t, got.Refunded)
	assert.Equal(t, order.StatusProcessing, got.Status)
}

func TestRefund_MissingPaymentInfo(t *testing.T) {
	store := newMemStore(testOrder("o1", order.StatusCancelled))
	refund := &fakeRefunder{}
	svc := newTestService(store, refund, nil)

	_, err := svc.Refund(context.Background(), "o1", "")
	require.ErrorIs(t, err, ErrMissingPaymentInfo)
	assert.False(t, store.order("o1").Refunded)
	assert.Nil(t, store.order("o1").RefundedAt)
	assert.Zero(t, refund.calls)
}

func TestRefund_AlreadyRefunded(t *testing.T) {
	o := testOrder("o1", order.StatusCancelled)
	o.PaymentIntentID = "pi_123"
	o.Refunded = true
	o.RefundedAt = &fixedNow
	store := newMemStore(o)
	refund := &fakeRefunder{}
	svc := newTestService(store, refund, nil)

	_, err := svc.Refund(context.Background(), "o1", "pi_123")
	require.ErrorIs(t, err, ErrAlreadyRefunded)
	assert.Zero(t, refund.calls)
}

func TestRefund_ProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		kind payment.ErrorKind
		want error
	}{
		{name: "refunded at provider", kind: payment.KindConflict, want: ErrAlreadyRefunded},
		{name: "nothing captured", kind: payment.KindNoCharge, want: ErrNoCapturableCharge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOrder("o1", order.StatusCancelled)
			o.PaymentIntentID = "pi_123"
			store := newMemStore(o)
			refund := &fakeRefunder{err: &payment.ProviderError{Provider: "stripe", Kind: tt.kind}}
			svc := newTestService(store, refund, nil)

			_, err := svc.Refund(context.Background(), "o1", "pi_123")
			require.ErrorIs(t, err, tt.want)
			assert.False(t, store.order("o1").Refunded)
		})
	}
}

func TestRefund_ProviderFailureIsNotRetried(t *testing.T) {
	o := testOrder("o1", order.StatusCancelled)
	o.PaymentIntentID = "pi_123"
	store := newMemStore(o)
	refund := &fakeRefunder{err: errors.New("gateway timeout")}
	svc := newTestService(store, refund, nil)

	_, err := svc.Refund(context.Background(), "o1", "pi_123")
	require.Error(t, err)
	assert.Equal(t, 1, refund.calls)
	assert.False(t, store.order("o1").Refunded)
}

func TestRefund_Mismatch(t *testing.T) {
	o := testOrder("o1", order.StatusCancelled)
	o.PaymentIntentID = "pi_123"
	svc := newTestService(newMemStore(o), &fakeRefunder{}, nil)

	_, err := svc.Refund(context.Background(), "o1", "pi_999")
	require.ErrorIs(t, err, ErrPaymentMismatch)
}

func TestSetTrackingCode_AnyStatus(t *testing.T) {
	store := newMemStore(testOrder("o1", order.StatusCancelled))
	svc := newTestService(store, nil, nil)

	got, err := svc.SetTrackingCode(context.Background(), "o1", "TRK1")
	require.NoError(t, err)
	assert.Equal(t, "TRK1", got.TrackingCode)
	assert.Equal(t, order.StatusCancelled, got.Status)
}

func TestNotifyShipping_PendingIsRejected(t *testing.T) {
	store := newMemStore(testOrder("o1", order.StatusPending))
	notifier := &fakeNotifier{}
	svc := newTestService(store, nil, notifier)

	_, err := svc.SetTrackingCode(context.Background(), "o1", "TRK1")
	require.NoError(t, err)

	_, err = svc.NotifyShipping(context.Background(), "o1")
	require.ErrorIs(t, err, ErrNotShipped)
	assert.Empty(t, notifier.sent)
}

func TestNotifyShipping_Gating(t *testing.T) {
	tests := []struct {
		status   order.Status
		tracking string
		wantErr  error
	}{
		{status: order.StatusPending, tracking: "", wantErr: ErrNotShipped},
		{status: order.StatusProcessing, tracking: "TRK1", wantErr: ErrNotShipped},
		{status: order.StatusDelivered, tracking: "TRK1", wantErr: ErrNotShipped},
		{status: order.StatusCancelled, tracking: "TRK1", wantErr: ErrNotShipped},
		{status: order.StatusShipped, tracking: "", wantErr: ErrMissingTrackingCode},
		{status: order.StatusShipped, tracking: "TRK1", wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.status)+"/"+tt.tracking, func(t *testing.T) {
			o := testOrder("o1", tt.status)
			o.TrackingCode = tt.tracking
			notifier := &fakeNotifier{}
			svc := newTestService(newMemStore(o), nil, notifier)

			sentTo, err := svc.NotifyShipping(context.Background(), "o1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, notifier.sent)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "fan@example.com", sentTo)
			require.Len(t, notifier.sent, 1)
			assert.Equal(t, "TRK1", notifier.sent[0].TrackingCode)
		})
	}
}

func TestApply(t *testing.T) {
	store := newMemStore(testOrder("o1", order.StatusProcessing))
	svc := newTestService(store, nil, nil)

	shipped := order.StatusShipped
	code := "TRK1"
	got, err := svc.Apply(context.Background(), "o1", order.Patch{Status: &shipped, TrackingCode: &code})
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, got.Status)
	assert.Equal(t, "TRK1", got.TrackingCode)
}

func TestCreateAndGet(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil, nil)

	created, err := svc.Create(context.Background(), order.Order{
		Currency:        currency.CurrencyEUR,
		PaymentProvider: order.ProviderRedirect,
		PaymentIntentID: "CAPTURE-1",
		Items: []orderitem.OrderItem{
			{ProductID: "p1", Name: "Home Jersey", UnitPrice: decimal.RequireFromString("89.99"), Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, order.StatusPending, created.Status)
	assert.Equal(t, "179.98", created.Amount.StringFixed(2))

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, created.ID, got.Items[0].OrderID)

	list, err := svc.List(context.Background(), order.QueryOrdersModel{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreate_Empty(t *testing.T) {
	svc := newTestService(newMemStore(), nil, nil)

	_, err := svc.Create(context.Background(), order.Order{})
	require.ErrorIs(t, err, ErrEmptyOrder)
}
