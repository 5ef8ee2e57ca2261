package ioutboxrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/outbox"
)

// IOutboxRepository stores notifications waiting for redelivery.
type IOutboxRepository interface {
	Park(ctx context.Context, msg outbox.Message) error
	Due(ctx context.Context, now time.Time, limit int) ([]outbox.Message, error)
	MarkDelivered(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, attempts int, lastError string, next time.Time) error
}
