package outbox

import (
	"time"
)

// DefaultMaxAttempts bounds redelivery of a parked notification.
const DefaultMaxAttempts = 8

// Message is a notification that could not be handed to the broker right away.
// It is addressed to a queue on the default exchange.
type Message struct {
	ID            int64
	OrderID       string
	Queue         string
	Payload       []byte
	Attempts      int
	MaxAttempts   int
	LastError     string
	CreatedAt     time.Time
	NextAttemptAt time.Time
}

// Park builds a message for queue that is due immediately.
func Park(orderID, queue string, payload []byte, cause error) Message {
	now := time.Now()
	msg := Message{
		OrderID:       orderID,
		Queue:         queue,
		Payload:       payload,
		Attempts:      1,
		MaxAttempts:   DefaultMaxAttempts,
		CreatedAt:     now,
		NextAttemptAt: now,
	}
	if cause != nil {
		msg.LastError = cause.Error()
	}

	return msg
}

// Exhausted reports whether the message has used up its delivery attempts.
func (m Message) Exhausted() bool {
	return m.Attempts >= m.MaxAttempts
}
