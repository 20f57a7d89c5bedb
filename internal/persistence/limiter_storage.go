package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const limiterKeyPrefix = "ratelimit:"

// LimiterStorage adapts go-redis to fiber.Storage so the limiter middleware's
// fixed-window counters are shared by every API instance.
type LimiterStorage struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewLimiterStorage returns nil when Redis is unavailable so the limiter falls
// back to fiber's in-memory storage.
func NewLimiterStorage(r *Redis) fiber.Storage {
	if !r.Available() {
		return nil
	}
	return &LimiterStorage{client: r.Client, timeout: time.Second}
}

// Get returns nil, nil when the key does not exist.
func (s *LimiterStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	val, err := s.client.Get(ctx, limiterKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *LimiterStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Set(ctx, limiterKeyPrefix+key, val, exp).Err()
}

func (s *LimiterStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Del(ctx, limiterKeyPrefix+key).Err()
}

// Reset removes every limiter key, leaving the rest of the database alone.
func (s *LimiterStorage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*s.timeout)
	defer cancel()
	iter := s.client.Scan(ctx, 0, limiterKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close is a no-op; the client is owned by Redis.
func (s *LimiterStorage) Close() error {
	return nil
}
