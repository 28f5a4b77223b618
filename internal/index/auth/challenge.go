package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// ChallengeStore keeps at most one outstanding login challenge per wallet.
// Take returns and removes it, so each challenge verifies at most once.
type ChallengeStore interface {
	Put(ctx context.Context, wallet, challenge string) error
	Take(ctx context.Context, wallet string) (string, error)
}

// MemoryChallenges is a ChallengeStore for a single index instance.
type MemoryChallenges struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, string]
}

func NewMemoryChallenges(size int, ttl time.Duration) *MemoryChallenges {
	return &MemoryChallenges{cache: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (m *MemoryChallenges) Put(_ context.Context, wallet, challenge string) error {
	m.cache.Add(wallet, challenge)
	return nil
}

func (m *MemoryChallenges) Take(_ context.Context, wallet string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.cache.Peek(wallet)
	if !ok {
		return "", common.ErrNotFound
	}
	m.cache.Remove(wallet)
	return v, nil
}

// RedisChallenges shares challenges between index instances.
type RedisChallenges struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisChallenges(rdb *redis.Client, ttl time.Duration) *RedisChallenges {
	return &RedisChallenges{rdb: rdb, ttl: ttl, prefix: "helix:challenge:"}
}

func (r *RedisChallenges) Put(ctx context.Context, wallet, challenge string) error {
	if err := r.rdb.Set(ctx, r.prefix+wallet, challenge, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

func (r *RedisChallenges) Take(ctx context.Context, wallet string) (string, error) {
	v, err := r.rdb.GetDel(ctx, r.prefix+wallet).Result()
	if errors.Is(err, redis.Nil) {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read challenge: %w", err)
	}
	return v, nil
}
