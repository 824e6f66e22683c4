package server

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisStore(t *testing.T) (*redisStore, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	store := newRedisStore(mini.Addr(), "", time.Second)
	t.Cleanup(func() { store.Close() })
	return store, mini
}

func TestRedisStoreAllowWithinLimit(t *testing.T) {
	t.Parallel()
	store, _ := newTestRedisStore(t)

	for i := 0; i < 5; i++ {
		allowed, retryAfter, err := store.Allow("rate:client-a", 5, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if retryAfter != 0 {
			t.Fatalf("allowed request reported retryAfter %v", retryAfter)
		}
	}
}

func TestRedisStoreRejectsOverLimit(t *testing.T) {
	t.Parallel()
	store, _ := newTestRedisStore(t)

	for i := 0; i < 3; i++ {
		if allowed, _, err := store.Allow("rate:client-b", 3, time.Minute); err != nil || !allowed {
			t.Fatalf("request %d: allowed=%v err=%v", i+1, allowed, err)
		}
	}
	allowed, retryAfter, err := store.Allow("rate:client-b", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("request over the limit should be rejected")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("retryAfter %v outside (0, window]", retryAfter)
	}
}

func TestRedisStoreArmsWindowExpiry(t *testing.T) {
	t.Parallel()
	store, mini := newTestRedisStore(t)

	if _, _, err := store.Allow("rate:client-c", 1, 30*time.Second); err != nil {
		t.Fatalf("allow: %v", err)
	}
	ttl := mini.TTL("rate:client-c")
	if ttl <= 0 || ttl > 30*time.Second {
		t.Fatalf("expected armed expiry within window, got %v", ttl)
	}
}

func TestRedisStoreWindowResetRestoresBudget(t *testing.T) {
	t.Parallel()
	store, mini := newTestRedisStore(t)

	if allowed, _, _ := store.Allow("rate:client-d", 1, 10*time.Second); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _, _ := store.Allow("rate:client-d", 1, 10*time.Second); allowed {
		t.Fatal("second request should be rejected")
	}

	mini.FastForward(11 * time.Second)

	if allowed, _, _ := store.Allow("rate:client-d", 1, 10*time.Second); !allowed {
		t.Fatal("budget should be restored after the window expires")
	}
}

func TestRedisStoreMinimumExpiry(t *testing.T) {
	t.Parallel()
	store, mini := newTestRedisStore(t)

	if _, _, err := store.Allow("rate:client-e", 1, 100*time.Millisecond); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ttl := mini.TTL("rate:client-e"); ttl < time.Second {
		t.Fatalf("sub-second windows should still arm a 1s expiry, got %v", ttl)
	}
}

func TestRedisStoreRepairsMissingExpiry(t *testing.T) {
	t.Parallel()
	store, mini := newTestRedisStore(t)

	// A counter whose EXPIRE never landed: over the limit with no TTL.
	if err := mini.Set("rate:client-f", "5"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	allowed, retryAfter, err := store.Allow("rate:client-f", 3, 10*time.Second)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("over-limit request should be rejected")
	}
	if retryAfter != 10*time.Second {
		t.Fatalf("expected retryAfter of a full window, got %v", retryAfter)
	}
	if ttl := mini.TTL("rate:client-f"); ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("expiry should be re-armed, got TTL %v", ttl)
	}

	mini.FastForward(11 * time.Second)

	if allowed, _, _ := store.Allow("rate:client-f", 3, 10*time.Second); !allowed {
		t.Fatal("client must recover once the re-armed window lapses")
	}
}

func TestRedisStoreKeysAreIsolated(t *testing.T) {
	t.Parallel()
	store, _ := newTestRedisStore(t)

	if allowed, _, _ := store.Allow("rate:busy", 1, time.Minute); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _, _ := store.Allow("rate:busy", 1, time.Minute); allowed {
		t.Fatal("busy client should be rejected")
	}
	if allowed, _, _ := store.Allow("rate:idle", 1, time.Minute); !allowed {
		t.Fatal("exhausting one key must not affect another")
	}
}
