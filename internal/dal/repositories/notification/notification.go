package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/corray333/backend-labs/storefront/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/storefront/internal/service/models/notification"
	"github.com/corray333/backend-labs/storefront/internal/service/models/outbox"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

const defaultShippingQueue = "storefront.shipping.notify"

type publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

type outboxWriter interface {
	Park(ctx context.Context, msg outbox.Message) error
}

// ShippingNotifier hands shipping notifications to the mailer queue.
// Messages that cannot be published right away are parked in the outbox.
type ShippingNotifier struct {
	publisher publisher
	outbox    outboxWriter
	queue     string
}

// MustNewShippingNotifier declares the notification queue and returns a notifier.
func MustNewShippingNotifier(client *rabbitmq.Client, outboxRepo outboxWriter) *ShippingNotifier {
	queueName := viper.GetString("rabbitmq.queues.shipping")
	if queueName == "" {
		queueName = defaultShippingQueue
	}

	queue, err := client.DeclareQueue(queueName)
	if err != nil {
		panic(err)
	}

	return NewShippingNotifier(client, outboxRepo, queue)
}

// NewShippingNotifier creates a notifier for an already declared queue.
func NewShippingNotifier(p publisher, outboxRepo outboxWriter, queue string) *ShippingNotifier {
	return &ShippingNotifier{
		publisher: p,
		outbox:    outboxRepo,
		queue:     queue,
	}
}

// SendShippingNotification publishes the notification and returns its destination.
func (n *ShippingNotifier) SendShippingNotification(
	ctx context.Context,
	msg notification.ShippingNotification,
) (string, error) {
	ctx, span := otel.Tracer("notification").Start(ctx, "ShippingNotifier.Send")
	defer span.End()

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode shipping notification: %w", err)
	}

	pubErr := n.publisher.Publish(ctx, n.queue, body)
	if pubErr == nil {
		return msg.To, nil
	}

	slog.Warn("Failed to publish shipping notification, parking in outbox",
		"order_id", msg.OrderID,
		"error", pubErr,
	)

	if err := n.outbox.Park(ctx, outbox.Park(msg.OrderID, n.queue, body, pubErr)); err != nil {
		return "", fmt.Errorf("failed to send shipping notification: %w", err)
	}

	return msg.To, nil
}
