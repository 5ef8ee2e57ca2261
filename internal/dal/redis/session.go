package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/session"
	goredis "github.com/redis/go-redis/v9"
)

// SessionStore keeps payment sessions in Redis with a sliding TTL.
type SessionStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewSessionStore creates a new session store.
func NewSessionStore(rdb *goredis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return "checkout:session:" + id
}

// Save creates or replaces a session.
func (s *SessionStore) Save(ctx context.Context, sess session.PaymentSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode payment session: %w", err)
	}

	if err := s.rdb.Set(ctx, sessionKey(sess.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store payment session: %w", err)
	}

	return nil
}

// Load returns the session or session.ErrNotFound.
func (s *SessionStore) Load(ctx context.Context, id string) (*session.PaymentSession, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment session: %w", err)
	}

	var sess session.PaymentSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode payment session: %w", err)
	}

	return &sess, nil
}

// Clear removes the session. Clearing a missing session is not an error.
func (s *SessionStore) Clear(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to clear payment session: %w", err)
	}

	return nil
}
