package guestcart

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgredis "github.com/marketbloom/storefront-gateway/pkg/redis"
)

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	GuestCartKey(guestToken string) string
}

// RedisSlot keeps one guest snapshot per guest token, expiring after the
// configured TTL of inactivity.
type RedisSlot struct {
	store redisStore
	key   string
	ttl   time.Duration
}

// NewRedisSlot builds a slot bound to the given guest token.
func NewRedisSlot(client *pkgredis.Client, guestToken string, ttl time.Duration) (*RedisSlot, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if guestToken == "" {
		return nil, fmt.Errorf("guest token required")
	}
	return &RedisSlot{store: client, key: client.GuestCartKey(guestToken), ttl: ttl}, nil
}

func (s *RedisSlot) Read(ctx context.Context) ([]byte, error) {
	raw, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read guest slot: %w", err)
	}
	return []byte(raw), nil
}

func (s *RedisSlot) Write(ctx context.Context, payload []byte) error {
	if err := s.store.Set(ctx, s.key, string(payload), s.ttl); err != nil {
		return fmt.Errorf("write guest slot: %w", err)
	}
	return nil
}

func (s *RedisSlot) Clear(ctx context.Context) error {
	if err := s.store.Del(ctx, s.key); err != nil {
		return fmt.Errorf("clear guest slot: %w", err)
	}
	return nil
}
