package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/storefront/internal/service/models/outbox"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/viper"
)

type publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Worker relays parked shipping notifications to the broker.
type Worker struct {
	repo      ioutboxrepo.IOutboxRepository
	publisher publisher

	pollInterval time.Duration
	batchSize    int
	baseDelay    time.Duration
	maxDelay     time.Duration

	now func() time.Time
}

// NewWorker creates a new outbox worker.
func NewWorker(repo ioutboxrepo.IOutboxRepository, publisher publisher) *Worker {
	return &Worker{
		repo:         repo,
		publisher:    publisher,
		pollInterval: secondsOr("rabbitmq.outbox.poll_interval_seconds", 10),
		batchSize:    intOr("rabbitmq.outbox.batch_size", 100),
		baseDelay:    secondsOr("rabbitmq.outbox.retry_interval_seconds", 30),
		maxDelay:     secondsOr("rabbitmq.outbox.max_backoff_seconds", 3600),
		now:          time.Now,
	}
}

func secondsOr(key string, def int) time.Duration {
	return time.Duration(intOr(key, def)) * time.Second
}

func intOr(key string, def int) int {
	if v := viper.GetInt(key); v > 0 {
		return v
	}

	return def
}

// Start relays due messages every poll interval until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.relay(ctx)
		}
	}
}

// delay returns the wait before retry number attempts, doubling from baseDelay up to maxDelay.
func (w *Worker) delay(attempts int) time.Duration {
	b := retry.WithCappedDuration(w.maxDelay, retry.NewExponential(w.baseDelay))

	var d time.Duration
	for i := 0; i < attempts; i++ {
		d, _ = b.Next()
	}

	return d
}

func (w *Worker) relay(ctx context.Context) {
	due, err := w.repo.Due(ctx, w.now(), w.batchSize)
	if err != nil {
		slog.Error("Failed to load due notifications", "error", err)

		return
	}

	for _, msg := range due {
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, msg)
	}
}

func (w *Worker) deliver(ctx context.Context, msg outbox.Message) {
	if err := w.publisher.Publish(ctx, msg.Queue, msg.Payload); err != nil {
		msg.Attempts++
		attempts := msg.Attempts
		next := w.now().Add(w.delay(attempts))

		if msg.Exhausted() {
			slog.Error("Shipping notification abandoned",
				"outbox_id", msg.ID,
				"order_id", msg.OrderID,
				"attempts", attempts,
				"error", err,
			)
		} else {
			slog.Warn("Shipping notification redelivery failed",
				"outbox_id", msg.ID,
				"order_id", msg.OrderID,
				"attempts", attempts,
				"next_attempt_at", next,
				"error", err,
			)
		}

		if err := w.repo.Reschedule(ctx, msg.ID, attempts, err.Error(), next); err != nil {
			slog.Error("Failed to reschedule notification", "outbox_id", msg.ID, "error", err)
		}

		return
	}

	if err := w.repo.MarkDelivered(ctx, msg.ID); err != nil {
		slog.Error("Failed to mark notification delivered", "outbox_id", msg.ID, "error", err)

		return
	}
	slog.Info("Shipping notification delivered", "outbox_id", msg.ID, "order_id", msg.OrderID)
}
