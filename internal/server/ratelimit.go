package server

import (
	"hash/fnv"
	"sync"
	"time"
)

const rateLimitShardCount = 32

// Defaults for the admission window. Both are overridable through config;
// a negative Limit disables limiting entirely.
const (
	defaultRateLimit  = 120
	defaultRateWindow = time.Minute
)

// RateLimitConfig bounds request volume per client over a fixed window.
// Requests outside /api/ are never limited. When RedisAddr is set the
// counters live in Redis so replicas share one budget; otherwise each
// process keeps its own sharded in-memory counters.
type RateLimitConfig struct {
	Limit         int
	Window        time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTimeout  time.Duration
}

type tokenStore interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// fixedWindow is one client's counter. Expired windows are replaced
// wholesale rather than mutated so a stale counter can never leak requests
// into the next window.
type fixedWindow struct {
	start time.Time
	count int
}

type rateLimitShard struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
}

type rateLimiter struct {
	limit  int
	window time.Duration
	shards [rateLimitShardCount]*rateLimitShard
	store  tokenStore
	clock  func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	limit := cfg.Limit
	switch {
	case limit == 0:
		limit = defaultRateLimit
	case limit < 0:
		limit = 0
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultRateWindow
	}

	rl := &rateLimiter{
		limit:  limit,
		window: window,
		clock:  time.Now,
	}
	for i := range rl.shards {
		rl.shards[i] = &rateLimitShard{windows: make(map[string]*fixedWindow)}
	}
	if cfg.RedisAddr != "" && limit > 0 {
		timeout := cfg.RedisTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		rl.store = newRedisStore(cfg.RedisAddr, cfg.RedisPassword, timeout)
	}
	return rl
}

// Allow counts the request against the client's current window and reports
// whether it fits the budget. The counter increments before the comparison,
// so the limit+1th request in a window is the first rejection.
func (rl *rateLimiter) Allow(key string) (bool, time.Duration, error) {
	if rl == nil || rl.limit <= 0 {
		return true, 0, nil
	}
	if rl.store != nil {
		return rl.store.Allow("tubecurator:rate:"+key, rl.limit, rl.window)
	}

	now := rl.clock()
	shard := rl.shards[shardIndex(key)]

	shard.mu.Lock()
	defer shard.mu.Unlock()

	window, exists := shard.windows[key]
	if !exists || now.Sub(window.start) >= rl.window {
		window = &fixedWindow{start: now}
		shard.windows[key] = window
	}
	window.count++
	if window.count <= rl.limit {
		return true, 0, nil
	}

	retryAfter := window.start.Add(rl.window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter, nil
}

// Prune discards windows that ended before the previous full window. The
// server runs this periodically so idle clients do not pin memory.
func (rl *rateLimiter) Prune() {
	if rl == nil {
		return
	}
	cutoff := rl.clock().Add(-2 * rl.window)
	for _, shard := range rl.shards {
		shard.mu.Lock()
		for key, window := range shard.windows {
			if window.start.Before(cutoff) {
				delete(shard.windows, key)
			}
		}
		shard.mu.Unlock()
	}
}

func shardIndex(key string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(key))
	return int(hasher.Sum32() % rateLimitShardCount)
}
