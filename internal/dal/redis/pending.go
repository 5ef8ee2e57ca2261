package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	goredis "github.com/redis/go-redis/v9"
)

// ErrPendingNotFound is returned when no quote is parked for a provider order.
var ErrPendingNotFound = errors.New("pending checkout not found")

// PendingCheckoutStore parks the authoritative quote of a provider order until
// it is captured.
type PendingCheckoutStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewPendingCheckoutStore creates a new store whose entries expire after ttl.
func NewPendingCheckoutStore(rdb *goredis.Client, ttl time.Duration) *PendingCheckoutStore {
	return &PendingCheckoutStore{rdb: rdb, ttl: ttl}
}

func pendingKey(providerOrderID string) string {
	return "checkout:pending:" + providerOrderID
}

// Put stores the quote for a provider order.
func (s *PendingCheckoutStore) Put(ctx context.Context, providerOrderID string, quote payment.Quote) error {
	raw, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to encode quote: %w", err)
	}

	if err := s.rdb.Set(ctx, pendingKey(providerOrderID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store quote: %w", err)
	}

	return nil
}

// Take returns and removes the quote for a provider order.
func (s *PendingCheckoutStore) Take(ctx context.Context, providerOrderID string) (*payment.Quote, error) {
	raw, err := s.rdb.GetDel(ctx, pendingKey(providerOrderID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quote: %w", err)
	}

	var quote payment.Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}

	return &quote, nil
}
