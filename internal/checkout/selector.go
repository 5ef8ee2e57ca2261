package checkout

import (
	"context"
	"sync"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
)

// Selector keeps exactly one payment method mounted. Switching revokes the
// previous method's ticket.
type Selector struct {
	completion *Completion
	handlers   map[order.Provider]Handler
	options    []order.Provider

	mu       sync.Mutex
	selected order.Provider
	current  Handler
}

// NewSelector creates a selector. A nil card handler means no intent exists and
// the card option is not offered.
func NewSelector(completion *Completion, card, redirect Handler) *Selector {
	s := &Selector{
		completion: completion,
		handlers:   map[order.Provider]Handler{},
	}
	if card != nil {
		s.handlers[order.ProviderCard] = card
		s.options = append(s.options, order.ProviderCard)
	}
	if redirect != nil {
		s.handlers[order.ProviderRedirect] = redirect
		s.options = append(s.options, order.ProviderRedirect)
	}

	return s
}

// Options lists the methods offered to the buyer, default first.
func (s *Selector) Options() []order.Provider {
	return append([]order.Provider(nil), s.options...)
}

// Selected returns the mounted method.
func (s *Selector) Selected() order.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selected
}

// Current returns the mounted handler, or nil.
func (s *Selector) Current() Handler {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Start mounts the default method: card when an intent exists, redirect otherwise.
func (s *Selector) Start(ctx context.Context) error {
	if len(s.options) == 0 {
		return newError(CategoryConfiguration, "", ErrMethodUnavailable)
	}

	return s.Select(ctx, s.options[0])
}

// Select unmounts the current method and mounts the requested one.
func (s *Selector) Select(ctx context.Context, method order.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.handlers[method]
	if !ok {
		return newError(CategoryConfiguration, "", ErrMethodUnavailable)
	}
	if s.current != nil && s.selected == method {
		return nil
	}
	if s.current != nil && s.current.Busy() {
		return ErrPaymentInFlight
	}

	if s.current != nil {
		s.current.Unmount()
		s.current = nil
	}

	s.selected = ""
	if err := next.Mount(ctx, s.completion.Issue()); err != nil {
		next.Unmount()

		return err
	}
	s.selected = method
	s.current = next

	return nil
}

// Pay runs a payment on the mounted method.
func (s *Selector) Pay(ctx context.Context, in Input) (Outcome, error) {
	h := s.Current()
	if h == nil {
		return Outcome{}, ErrNotMounted
	}

	return h.Pay(ctx, in)
}

// Close unmounts the current method.
func (s *Selector) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Unmount()
		s.current = nil
	}
}
