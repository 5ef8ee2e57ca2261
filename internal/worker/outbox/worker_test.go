package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reschedule struct {
	attempts  int
	lastError string
	next      time.Time
}

type fakeRepo struct {
	due         []outbox.Message
	dueAt       time.Time
	delivered   []int64
	rescheduled map[int64]reschedule
}

func (r *fakeRepo) Park(context.Context, outbox.Message) error { return nil }

func (r *fakeRepo) Due(_ context.Context, now time.Time, _ int) ([]outbox.Message, error) {
	r.dueAt = now

	return r.due, nil
}

func (r *fakeRepo) MarkDelivered(_ context.Context, id int64) error {
	r.delivered = append(r.delivered, id)

	return nil
}

func (r *fakeRepo) Reschedule(_ context.Context, id int64, attempts int, lastError string, next time.Time) error {
	r.rescheduled[id] = reschedule{attempts: attempts, lastError: lastError, next: next}

	return nil
}

type flakyPublisher struct {
	down string
}

func (p flakyPublisher) Publish(_ context.Context, queue string, _ []byte) error {
	if queue == p.down {
		return errors.New("broker unavailable")
	}

	return nil
}

func newTestWorker(repo *fakeRepo, now time.Time) *Worker {
	return &Worker{
		repo:      repo,
		publisher: flakyPublisher{down: "down"},
		batchSize: 10,
		baseDelay: time.Second,
		maxDelay:  10 * time.Second,
		now:       func() time.Time { return now },
	}
}

func TestRelayDeliversAndReschedules(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		due: []outbox.Message{
			{ID: 1, OrderID: "ord-1", Queue: "shipping", Attempts: 1, MaxAttempts: 8},
			{ID: 2, OrderID: "ord-2", Queue: "down", Attempts: 1, MaxAttempts: 8},
		},
		rescheduled: map[int64]reschedule{},
	}

	newTestWorker(repo, now).relay(context.Background())

	assert.Equal(t, now, repo.dueAt)
	assert.Equal(t, []int64{1}, repo.delivered)
	require.Contains(t, repo.rescheduled, int64(2))
	got := repo.rescheduled[2]
	assert.Equal(t, 2, got.attempts)
	assert.Equal(t, "broker unavailable", got.lastError)
	assert.Equal(t, now.Add(2*time.Second), got.next)
}

func TestRelayStopsOnCancelledContext(t *testing.T) {
	repo := &fakeRepo{
		due:         []outbox.Message{{ID: 1, Queue: "shipping", MaxAttempts: 8}},
		rescheduled: map[int64]reschedule{},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	newTestWorker(repo, time.Now()).relay(ctx)

	assert.Empty(t, repo.delivered)
	assert.Empty(t, repo.rescheduled)
}

func TestDelayDoublesUpToCap(t *testing.T) {
	w := &Worker{baseDelay: time.Second, maxDelay: 10 * time.Second}

	assert.Equal(t, time.Second, w.delay(1))
	assert.Equal(t, 4*time.Second, w.delay(3))
	assert.Equal(t, 10*time.Second, w.delay(6))
}

func TestStartReturnsOnCancel(t *testing.T) {
	repo := &fakeRepo{rescheduled: map[int64]reschedule{}}
	w := newTestWorker(repo, time.Now())
	w.pollInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRelayRecordsExhaustedAttempt(t *testing.T) {
	repo := &fakeRepo{
		due:         []outbox.Message{{ID: 7, OrderID: "ord-7", Queue: "down", Attempts: 7, MaxAttempts: 8}},
		rescheduled: map[int64]reschedule{},
	}

	newTestWorker(repo, time.Now()).relay(context.Background())

	require.Contains(t, repo.rescheduled, int64(7))
	assert.Equal(t, 8, repo.rescheduled[7].attempts)
	assert.True(t, outbox.Message{Attempts: 8, MaxAttempts: 8}.Exhausted())
}
