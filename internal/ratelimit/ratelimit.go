// Package ratelimit provides best-effort throttling of repeated failed
// logins. The default implementation is per-process and in-memory: it
// resets on restart and does not coordinate across instances. It is a
// brake on brute force, not a substitute for credential checks.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates an operation by key. Implementations must be safe for
// concurrent use. Multi-instance deployments can swap in a store-backed
// implementation.
type Limiter interface {
	// Allow consumes one attempt for the key and reports whether the
	// attempt budget still permits it.
	Allow(key string) bool
	// Reset clears the attempt history for the key (e.g. after a
	// successful login).
	Reset(key string)
}

// maxEntries bounds the keyed map; stale entries are pruned when the
// map grows past it.
const maxEntries = 65536

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter is the in-memory default. Each key gets a token bucket
// holding the full attempt budget, refilled over the lockout window.
type KeyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	burst   int
	refill  rate.Limit
	window  time.Duration
}

func NewKeyedLimiter(maxAttempts int, window time.Duration) *KeyedLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &KeyedLimiter{
		entries: make(map[string]*entry),
		burst:   maxAttempts,
		refill:  rate.Every(window / time.Duration(maxAttempts)),
		window:  window,
	}
}

func (k *KeyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		if len(k.entries) >= maxEntries {
			k.prune()
		}
		e = &entry{lim: rate.NewLimiter(k.refill, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.lim.Allow()
}

func (k *KeyedLimiter) Reset(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.entries, key)
}

// prune drops entries idle for longer than the lockout window.
// Caller holds the lock.
func (k *KeyedLimiter) prune() {
	cutoff := time.Now().Add(-k.window)
	for key, e := range k.entries {
		if e.lastSeen.Before(cutoff) {
			delete(k.entries, key)
		}
	}
}

// Unlimited never throttles. Used when rate limiting is disabled.
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }
func (Unlimited) Reset(string)      {}
