package catalogrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/storefront/internal/dal/postgres"
	"github.com/corray333/backend-labs/storefront/internal/service/models/catalog"
	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrAddressNotFound = errors.New("address not found")
)

// CatalogRepository reads products, coupons and saved addresses.
type CatalogRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(conn postgres.GenericConn) *CatalogRepository {
	return &CatalogRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ProductsByIDs returns the requested products keyed by id. Unknown ids are absent.
func (r *CatalogRepository) ProductsByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	sql, args, err := r.sb.
		Select("id", "name", "price_cents", "currency", "active").
		From("products").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	result := make(map[string]catalog.Product, len(ids))
	for rows.Next() {
		var (
			p          catalog.Product
			priceCents int64
			cur        string
		)
		if err := rows.Scan(&p.ID, &p.Name, &priceCents, &cur, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if p.Currency, err = currency.ParseCurrency(cur); err != nil {
			return nil, fmt.Errorf("product %s: %w", p.ID, err)
		}
		p.Price = decimal.New(priceCents, -2)
		result[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// CouponByCode returns a coupon or ErrCouponNotFound.
func (r *CatalogRepository) CouponByCode(ctx context.Context, code string) (*catalog.Coupon, error) {
	sql, args, err := r.sb.
		Select("code", "percent_off::text", "active", "expires_at").
		From("coupons").
		Where(sq.Eq{"code": code}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		c          catalog.Coupon
		percentOff string
		expiresAt  *time.Time
	)
	err = r.conn.QueryRow(ctx, sql, args...).Scan(&c.Code, &percentOff, &c.Active, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan coupon: %w", err)
	}

	if c.PercentOff, err = decimal.NewFromString(percentOff); err != nil {
		return nil, fmt.Errorf("coupon %s: %w", code, err)
	}
	c.ExpiresAt = expiresAt

	return &c, nil
}

// AddressByID returns a saved address or ErrAddressNotFound.
func (r *CatalogRepository) AddressByID(ctx context.Context, id string) (*catalog.SavedAddress, error) {
	sql, args, err := r.sb.
		Select("id", "email", "line1", "line2", "city", "postal_code", "country").
		From("addresses").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var a catalog.SavedAddress
	err = r.conn.QueryRow(ctx, sql, args...).Scan(
		&a.ID,
		&a.Email,
		&a.Address.Line1,
		&a.Address.Line2,
		&a.Address.City,
		&a.Address.PostalCode,
		&a.Address.Country,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan address: %w", err)
	}

	return &a, nil
}
