package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

const contentTypeJSON = "application/json"

// Client publishes JSON messages to durable queues on the default exchange.
// A channel closed by the broker is reopened on the next publish.
type Client struct {
	conn *amqp.Connection

	mu      sync.Mutex
	channel *amqp.Channel
}

// MustNewClient creates a new RabbitMQ client.
func MustNewClient() *Client {
	host := viper.GetString("rabbitmq.host")
	port := viper.GetInt("rabbitmq.port")

	if host == "" {
		host = "rabbitmq"
	}
	if port == 0 {
		port = 5672
	}

	connStr := fmt.Sprintf(
		"amqp://%s:%s@%s:%d/",
		os.Getenv("RABBITMQ_DEFAULT_USER"),
		os.Getenv("RABBITMQ_DEFAULT_PASS"),
		host,
		port,
	)

	conn, err := amqp.Dial(connStr)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to RabbitMQ: %v", err))
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		panic(fmt.Sprintf("Failed to open a channel: %v", err))
	}

	slog.Info("RabbitMQ connected", "host", host, "port", port)

	return &Client{
		conn:    conn,
		channel: channel,
	}
}

// DeclareQueue declares a durable queue and returns its name.
func (c *Client) DeclareQueue(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.channelLocked()
	if err != nil {
		return "", err
	}

	q, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return "", fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	return q.Name, nil
}

// Publish sends a persistent JSON message to queue.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.channelLocked()
	if err != nil {
		return err
	}

	err = ch.Publish("", queue, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if errors.Is(err, amqp.ErrClosed) {
		c.channel = nil
	}
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	return nil
}

// channelLocked returns the open channel, reopening it if needed. c.mu must be held.
func (c *Client) channelLocked() (*amqp.Channel, error) {
	if c.channel != nil {
		return c.channel, nil
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to reopen channel: %w", err)
	}
	slog.Warn("RabbitMQ channel reopened")
	c.channel = ch

	return ch, nil
}

// Close closes the channel and connection for graceful shutdown.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
		c.channel = nil
	}
	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}
