package outboxrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/storefront/internal/dal/postgres"
	"github.com/corray333/backend-labs/storefront/internal/service/models/outbox"
)

const table = "notification_outbox"

// OutboxRepository keeps undelivered shipping notifications in Postgres.
type OutboxRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewOutboxRepository creates a new outbox repository.
func NewOutboxRepository(conn postgres.GenericConn) *OutboxRepository {
	return &OutboxRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Park stores a notification for later delivery.
func (r *OutboxRepository) Park(ctx context.Context, msg outbox.Message) error {
	query, args, err := r.sb.Insert(table).
		Columns("order_id", "queue", "payload", "attempts", "max_attempts", "last_error", "created_at", "next_attempt_at").
		Values(msg.OrderID, msg.Queue, msg.Payload, msg.Attempts, msg.MaxAttempts, msg.LastError, msg.CreatedAt, msg.NextAttemptAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to park notification for order %s: %w", msg.OrderID, err)
	}

	return nil
}

// Due returns up to limit messages whose next attempt is not after now, oldest first.
// Exhausted messages are left in the table for inspection.
func (r *OutboxRepository) Due(ctx context.Context, now time.Time, limit int) ([]outbox.Message, error) {
	query, args, err := r.sb.
		Select("id", "order_id", "queue", "payload", "attempts", "max_attempts", "last_error", "created_at", "next_attempt_at").
		From(table).
		Where(sq.LtOrEq{"next_attempt_at": now}).
		Where("attempts < max_attempts").
		OrderBy("next_attempt_at").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due notifications: %w", err)
	}
	defer rows.Close()

	messages := make([]outbox.Message, 0, limit)
	for rows.Next() {
		var msg outbox.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.OrderID,
			&msg.Queue,
			&msg.Payload,
			&msg.Attempts,
			&msg.MaxAttempts,
			&msg.LastError,
			&msg.CreatedAt,
			&msg.NextAttemptAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return messages, nil
}

// MarkDelivered removes a message once the broker accepted it.
func (r *OutboxRepository) MarkDelivered(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete notification %d: %w", id, err)
	}

	return nil
}

// Reschedule records a failed attempt.
func (r *OutboxRepository) Reschedule(ctx context.Context, id int64, attempts int, lastError string, next time.Time) error {
	query, args, err := r.sb.Update(table).
		SetMap(map[string]any{
			"attempts":        attempts,
			"last_error":      lastError,
			"next_attempt_at": next,
		}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to reschedule notification %d: %w", id, err)
	}

	return nil
}
