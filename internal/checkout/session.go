package checkout

import (
	"context"
	"sync"

	"github.com/corray333/backend-labs/storefront/internal/service/models/session"
)

// SessionStore holds the payment session of a checkout attempt.
type SessionStore interface {
	Save(ctx context.Context, sess session.PaymentSession) error
	Load(ctx context.Context, id string) (*session.PaymentSession, error)
	Clear(ctx context.Context, id string) error
}

// MemorySessionStore is a process-local SessionStore.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]session.PaymentSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]session.PaymentSession{}}
}

func (m *MemorySessionStore) Save(_ context.Context, sess session.PaymentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sess.ID] = sess

	return nil
}

func (m *MemorySessionStore) Load(_ context.Context, id string) (*session.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}

	return &sess, nil
}

func (m *MemorySessionStore) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)

	return nil
}
