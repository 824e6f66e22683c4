package server

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore keeps fixed-window counters in Redis so every replica draws
// from the same per-client budget. INCR creates the counter, the first
// increment arms the window expiry, and TTL drives Retry-After on rejection.
type redisStore struct {
	client  *redis.Client
	timeout time.Duration
}

func newRedisStore(addr, password string, timeout time.Duration) *redisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	return &redisStore{client: client, timeout: timeout}
}

func (s *redisStore) Allow(key string, limit int, window time.Duration) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, windowExpiry(window)).Err(); err != nil {
			return false, 0, err
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// The first increment's EXPIRE never landed, so the counter would
		// otherwise reject this client forever. Re-arm the window.
		expiry := windowExpiry(window)
		if err := s.client.Expire(ctx, key, expiry).Err(); err != nil {
			return false, 0, err
		}
		return false, expiry, nil
	}
	return false, ttl, nil
}

func windowExpiry(window time.Duration) time.Duration {
	if window < time.Second {
		return time.Second
	}
	return window
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
