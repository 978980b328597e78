package token

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"classhub/pkg/platform/sentinel"
)

// UsedRegistry atomically claims single-use token IDs. MarkUsed returns
// sentinel.ErrAlreadyUsed when the ID has been claimed before; entries expire
// with the token so the registry does not grow unbounded.
type UsedRegistry interface {
	MarkUsed(ctx context.Context, jti string, ttl time.Duration) error
}

// MemoryRegistry tracks used token IDs in-process. Suitable for tests and
// single-instance deployments.
type MemoryRegistry struct {
	mu   sync.Mutex
	used map[string]time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{used: make(map[string]time.Time)}
}

func (r *MemoryRegistry) MarkUsed(_ context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, expiry := range r.used {
		if expiry.Before(now) {
			delete(r.used, id)
		}
	}

	if _, exists := r.used[jti]; exists {
		return sentinel.ErrAlreadyUsed
	}
	r.used[jti] = now.Add(ttl)
	return nil
}

const usedTokenKeyPrefix = "utl:jti:"

// RedisRegistry shares used-token state across instances. SET NX EX makes the
// claim atomic; key expiry tracks token expiry.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) MarkUsed(ctx context.Context, jti string, ttl time.Duration) error {
	claimed, err := r.client.SetNX(ctx, usedTokenKeyPrefix+jti, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}
