package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/notification"
	"github.com/corray333/backend-labs/storefront/internal/service/models/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	err    error
	bodies [][]byte
}

func (p *fakePublisher) Publish(_ context.Context, _ string, body []byte) error {
	p.bodies = append(p.bodies, body)

	return p.err
}

type fakeOutbox struct {
	err  error
	msgs []outbox.Message
}

func (o *fakeOutbox) Park(_ context.Context, msg outbox.Message) error {
	o.msgs = append(o.msgs, msg)

	return o.err
}

func shippingMsg() notification.ShippingNotification {
	return notification.ShippingNotification{
		OrderID:      "ord-1",
		To:           "fan@example.com",
		TrackingCode: "TRK1",
		RequestedAt:  time.Now(),
	}
}

func TestSendShippingNotificationPublishes(t *testing.T) {
	pub := &fakePublisher{}
	box := &fakeOutbox{}
	n := NewShippingNotifier(pub, box, "q")

	sentTo, err := n.SendShippingNotification(context.Background(), shippingMsg())
	require.NoError(t, err)
	assert.Equal(t, "fan@example.com", sentTo)
	require.Len(t, pub.bodies, 1)
	assert.Empty(t, box.msgs)

	var decoded notification.ShippingNotification
	require.NoError(t, json.Unmarshal(pub.bodies[0], &decoded))
	assert.Equal(t, "TRK1", decoded.TrackingCode)
}

func TestSendShippingNotificationFallsBackToOutbox(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	box := &fakeOutbox{}
	n := NewShippingNotifier(pub, box, "q")

	sentTo, err := n.SendShippingNotification(context.Background(), shippingMsg())
	require.NoError(t, err)
	assert.Equal(t, "fan@example.com", sentTo)
	require.Len(t, box.msgs, 1)
	assert.Equal(t, "ord-1", box.msgs[0].OrderID)
	assert.Equal(t, "q", box.msgs[0].Queue)
	assert.Equal(t, "channel closed", box.msgs[0].LastError)
	assert.Equal(t, 1, box.msgs[0].Attempts)
}

func TestSendShippingNotificationFailsWhenOutboxFails(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	box := &fakeOutbox{err: errors.New("db down")}
	n := NewShippingNotifier(pub, box, "q")

	_, err := n.SendShippingNotification(context.Background(), shippingMsg())
	assert.Error(t, err)
}
