package checkout

import (
	"context"
	"sync"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
)

// OutcomeStatus is the final state of one payment attempt.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeCancelled OutcomeStatus = "cancelled"
)

// Outcome is what a handler reports once the provider has answered.
type Outcome struct {
	Status    OutcomeStatus
	Provider  order.Provider
	// Reference is the provider intent or capture id.
	Reference string
	// OrderID is set when the provider side already recorded the order.
	OrderID   string
	Message   string
}

// SuccessFunc is the page-level success callback.
type SuccessFunc func(ctx context.Context, outcome Outcome) error

// Completion invokes the success callback at most once per checkout attempt.
// Only the most recently issued ticket may fire it.
type Completion struct {
	mu        sync.Mutex
	onSuccess SuccessFunc
	gen       uint64
	fired     bool
}

// NewCompletion wraps onSuccess.
func NewCompletion(onSuccess SuccessFunc) *Completion {
	return &Completion{onSuccess: onSuccess}
}

// Issue revokes every earlier ticket and returns a new one.
func (c *Completion) Issue() *Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++

	return &Ticket{c: c, gen: c.gen}
}

// Fired reports whether the success callback was invoked.
func (c *Completion) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fired
}

func (c *Completion) revoke(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen == gen {
		c.gen++
	}
}

// Ticket is a handler's revocable right to report success.
type Ticket struct {
	c   *Completion
	gen uint64
}

// Fire invokes the success callback if the ticket is current and nothing fired yet.
func (t *Ticket) Fire(ctx context.Context, outcome Outcome) error {
	if t == nil {
		return ErrTicketRevoked
	}

	t.c.mu.Lock()
	if t.c.fired || t.c.gen != t.gen {
		t.c.mu.Unlock()

		return ErrTicketRevoked
	}
	t.c.fired = true
	t.c.mu.Unlock()

	return t.c.onSuccess(ctx, outcome)
}

// Revoke makes the ticket unable to fire.
func (t *Ticket) Revoke() {
	if t != nil {
		t.c.revoke(t.gen)
	}
}
