package postgresrepo

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/storefront/internal/dal/postgres"
	"github.com/corray333/backend-labs/storefront/internal/service/models/orderitem"
	"github.com/shopspring/decimal"
)

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id             int64  `db:"id"`
	OrderId        string `db:"order_id"`
	Position       int    `db:"position"`
	ProductId      string `db:"product_id"`
	Name           string `db:"name"`
	UnitPriceCents int64  `db:"unit_price_cents"`
	Quantity       int    `db:"quantity"`
	Customization  []byte `db:"customization"`
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (oi *OrderItemDal) ToModel() (*orderitem.OrderItem, error) {
	item := &orderitem.OrderItem{
		ID:        oi.Id,
		OrderID:   oi.OrderId,
		ProductID: oi.ProductId,
		Name:      oi.Name,
		UnitPrice: decimal.New(oi.UnitPriceCents, -2),
		Quantity:  oi.Quantity,
	}

	if len(oi.Customization) > 0 {
		var c orderitem.Customization
		if err := json.Unmarshal(oi.Customization, &c); err != nil {
			return nil, fmt.Errorf("failed to decode customization: %w", err)
		}
		item.Customization = &c
	}

	return item, nil
}

// OrderItemDalFromModel converts service layer OrderItem model to OrderItemDal.
func OrderItemDalFromModel(oi *orderitem.OrderItem, position int) (*OrderItemDal, error) {
	dal := &OrderItemDal{
		Id:             oi.ID,
		OrderId:        oi.OrderID,
		Position:       position,
		ProductId:      oi.ProductID,
		Name:           oi.Name,
		UnitPriceCents: oi.UnitPrice.Shift(2).Round(0).IntPart(),
		Quantity:       oi.Quantity,
	}

	if oi.Customization != nil {
		raw, err := json.Marshal(oi.Customization)
		if err != nil {
			return nil, fmt.Errorf("failed to encode customization: %w", err)
		}
		dal.Customization = raw
	}

	return dal, nil
}

// PostgresOrderItemRepository represents a Postgres order item repository.
type PostgresOrderItemRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderItemRepository creates a new Postgres order item repository.
func NewPostgresOrderItemRepository(conn postgres.GenericConn) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BulkInsert inserts multiple order items and returns them with IDs.
// Item order within an order is preserved through the position column.
func (r *PostgresOrderItemRepository) BulkInsert(
	ctx context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(orderItems) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	query := r.sb.Insert("order_items").
		Columns("order_id", "position", "product_id", "name", "unit_price_cents", "quantity", "customization").
		Suffix("RETURNING id, order_id, position, product_id, name, unit_price_cents, quantity, customization")

	positions := map[string]int{}
	for i := range orderItems {
		pos := positions[orderItems[i].OrderID]
		positions[orderItems[i].OrderID] = pos + 1

		dal, err := OrderItemDalFromModel(&orderItems[i], pos)
		if err != nil {
			return nil, err
		}
		query = query.Values(
			dal.OrderId,
			dal.Position,
			dal.ProductId,
			dal.Name,
			dal.UnitPriceCents,
			dal.Quantity,
			dal.Customization,
		)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	return r.collect(ctx, sql, args, "failed to bulk insert order items")
}

// QueryByOrderIDs retrieves the items of the given orders in their original order.
func (r *PostgresOrderItemRepository) QueryByOrderIDs(
	ctx context.Context,
	orderIDs []string,
) ([]orderitem.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	sql, args, err := r.sb.
		Select("id", "order_id", "position", "product_id", "name", "unit_price_cents", "quantity", "customization").
		From("order_items").
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("order_id", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	return r.collect(ctx, sql, args, "failed to query order items")
}

func (r *PostgresOrderItemRepository) collect(
	ctx context.Context,
	sql string,
	args []any,
	failMsg string,
) ([]orderitem.OrderItem, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", failMsg, err)
	}
	defer rows.Close()

	var result []orderitem.OrderItem
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.Position,
			&dal.ProductId,
			&dal.Name,
			&dal.UnitPriceCents,
			&dal.Quantity,
			&dal.Customization,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		item, err := dal.ToModel()
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
