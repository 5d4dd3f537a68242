package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLimiterLocksOutAfterBurst(t *testing.T) {
	limiter := NewKeyedLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("login:clerk1:10.0.0.1"), "attempt %d should pass", i+1)
	}
	assert.False(t, limiter.Allow("login:clerk1:10.0.0.1"))
}

func TestKeyedLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewKeyedLimiter(1, time.Hour)

	assert.True(t, limiter.Allow("login:clerk1:10.0.0.1"))
	assert.False(t, limiter.Allow("login:clerk1:10.0.0.1"))

	// A different source address has its own bucket
	assert.True(t, limiter.Allow("login:clerk1:10.0.0.2"))
}

func TestKeyedLimiterReset(t *testing.T) {
	limiter := NewKeyedLimiter(2, time.Hour)

	assert.True(t, limiter.Allow("k"))
	assert.True(t, limiter.Allow("k"))
	assert.False(t, limiter.Allow("k"))

	limiter.Reset("k")
	assert.True(t, limiter.Allow("k"))
}

func TestKeyedLimiterRefills(t *testing.T) {
	limiter := NewKeyedLimiter(2, 100*time.Millisecond)

	assert.True(t, limiter.Allow("k"))
	assert.True(t, limiter.Allow("k"))
	assert.False(t, limiter.Allow("k"))

	// One token refills every window/maxAttempts
	time.Sleep(80 * time.Millisecond)
	assert.True(t, limiter.Allow("k"))
}

func TestUnlimited(t *testing.T) {
	limiter := Unlimited{}
	for i := 0; i < 1000; i++ {
		assert.True(t, limiter.Allow("k"))
	}
	limiter.Reset("k")
}
