package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ClaimGuard hands out one-time claims on keys such as a provider order capture.
type ClaimGuard struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewClaimGuard creates a new guard whose claims expire after ttl.
func NewClaimGuard(rdb *goredis.Client, ttl time.Duration) *ClaimGuard {
	return &ClaimGuard{rdb: rdb, ttl: ttl}
}

func claimKey(key string) string {
	return "claim:" + key
}

// Claim returns false if another request already holds the claim.
func (g *ClaimGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, claimKey(key), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}

	return ok, nil
}

// Release drops a claim so that a failed attempt can be retried.
func (g *ClaimGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, claimKey(key)).Err()
}
