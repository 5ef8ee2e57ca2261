package postgresrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/storefront/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/storefront/internal/dal/postgres"
	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var orderColumns = []string{
	"id",
	"amount_cents",
	"currency",
	"status",
	"payment_provider",
	"payment_intent_id",
	"customer_email",
	"tracking_code",
	"cancelled_at",
	"cancelled_by",
	"cancellation_reason",
	"refunded",
	"refunded_at",
	"shipping_address",
	"created_at",
	"updated_at",
}

// OrderDal represents order data access layer model
type OrderDal struct {
	Id                 string     `db:"id"`
	AmountCents        int64      `db:"amount_cents"`
	Currency           string     `db:"currency"`
	Status             string     `db:"status"`
	PaymentProvider    string     `db:"payment_provider"`
	PaymentIntentId    string     `db:"payment_intent_id"`
	CustomerEmail      string     `db:"customer_email"`
	TrackingCode       string     `db:"tracking_code"`
	CancelledAt        *time.Time `db:"cancelled_at"`
	CancelledBy        string     `db:"cancelled_by"`
	CancellationReason string     `db:"cancellation_reason"`
	Refunded           bool       `db:"refunded"`
	RefundedAt         *time.Time `db:"refunded_at"`
	ShippingAddress    []byte     `db:"shipping_address"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.Currency)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}

	model := &order.Order{
		ID:                 o.Id,
		Amount:             decimal.New(o.AmountCents, -2),
		Currency:           cur,
		Status:             status,
		PaymentProvider:    order.Provider(o.PaymentProvider),
		PaymentIntentID:    o.PaymentIntentId,
		CustomerEmail:      o.CustomerEmail,
		TrackingCode:       o.TrackingCode,
		CancelledAt:        o.CancelledAt,
		CancelledBy:        o.CancelledBy,
		CancellationReason: o.CancellationReason,
		Refunded:           o.Refunded,
		RefundedAt:         o.RefundedAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		Items:              []orderitem.OrderItem{}, // Will be populated separately
	}

	if len(o.ShippingAddress) > 0 {
		var addr order.Address
		if err := json.Unmarshal(o.ShippingAddress, &addr); err != nil {
			return nil, fmt.Errorf("failed to decode shipping address: %w", err)
		}
		model.ShippingAddress = &addr
	}

	return model, nil
}

// OrderDalFromModel converts service layer Order model to OrderDal
func OrderDalFromModel(o *order.Order) (*OrderDal, error) {
	dal := &OrderDal{
		Id:                 o.ID,
		AmountCents:        toCents(o.Amount),
		Currency:           o.Currency.String(),
		Status:             o.Status.String(),
		PaymentProvider:    string(o.PaymentProvider),
		PaymentIntentId:    o.PaymentIntentID,
		CustomerEmail:      o.CustomerEmail,
		TrackingCode:       o.TrackingCode,
		CancelledAt:        o.CancelledAt,
		CancelledBy:        o.CancelledBy,
		CancellationReason: o.CancellationReason,
		Refunded:           o.Refunded,
		RefundedAt:         o.RefundedAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}

	if o.ShippingAddress != nil {
		raw, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to encode shipping address: %w", err)
		}
		dal.ShippingAddress = raw
	}

	return dal, nil
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert stores a new order row. Items are stored by the order item repository.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) error {
	dal, err := OrderDalFromModel(&o)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.Insert("orders").
		Columns(orderColumns...).
		Values(
			dal.Id,
			dal.AmountCents,
			dal.Currency,
			dal.Status,
			dal.PaymentProvider,
			dal.PaymentIntentId,
			dal.CustomerEmail,
			dal.TrackingCode,
			dal.CancelledAt,
			dal.CancelledBy,
			dal.CancellationReason,
			dal.Refunded,
			dal.RefundedAt,
			dal.ShippingAddress,
			dal.CreatedAt,
			dal.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// Get retrieves a single order without its items.
func (r *PostgresOrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate retrieves a single order and locks its row until the transaction ends.
func (r *PostgresOrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, true)
}

func (r *PostgresOrderRepository) get(ctx context.Context, id string, lock bool) (*order.Order, error) {
	query := r.sb.Select(orderColumns...).From("orders").Where(sq.Eq{"id": id})
	if lock {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	dal, err := scanOrder(r.conn.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, iorderrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	return dal.ToModel()
}

// Query retrieves orders based on filter criteria, newest first.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	query := r.sb.Select(orderColumns...).From("orders").OrderBy("created_at DESC")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = s.String()
		}
		query = query.Where(sq.Eq{"status": statuses})
	}

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		dal, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Update writes the lifecycle columns of an order. Amount, items and
// creation time are never rewritten.
func (r *PostgresOrderRepository) Update(ctx context.Context, o order.Order) error {
	dal, err := OrderDalFromModel(&o)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.Update("orders").
		Set("status", dal.Status).
		Set("payment_intent_id", dal.PaymentIntentId).
		Set("tracking_code", dal.TrackingCode).
		Set("cancelled_at", dal.CancelledAt).
		Set("cancelled_by", dal.CancelledBy).
		Set("cancellation_reason", dal.CancellationReason).
		Set("refunded", dal.Refunded).
		Set("refunded_at", dal.RefundedAt).
		Set("updated_at", dal.UpdatedAt).
		Where(sq.Eq{"id": dal.Id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return iorderrepo.ErrNotFound
	}

	return nil
}

func scanOrder(row pgx.Row) (*OrderDal, error) {
	var dal OrderDal
	err := row.Scan(
		&dal.Id,
		&dal.AmountCents,
		&dal.Currency,
		&dal.Status,
		&dal.PaymentProvider,
		&dal.PaymentIntentId,
		&dal.CustomerEmail,
		&dal.TrackingCode,
		&dal.CancelledAt,
		&dal.CancelledBy,
		&dal.CancellationReason,
		&dal.Refunded,
		&dal.RefundedAt,
		&dal.ShippingAddress,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &dal, nil
}
