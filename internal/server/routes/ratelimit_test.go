package routes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuthLimiter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewAuthLimiter(1, 2)
	defer l.Stop()
	l.now = func() time.Time { return now }

	assert.False(t, l.Blocked("10.0.0.1"))
	l.Fail("10.0.0.1")
	assert.False(t, l.Blocked("10.0.0.1"))
	l.Fail("10.0.0.1")
	assert.True(t, l.Blocked("10.0.0.1"))
	assert.False(t, l.Blocked("10.0.0.2"), "limits are per client")

	now = now.Add(time.Second)
	assert.False(t, l.Blocked("10.0.0.1"), "one token refilled")
	assert.Equal(t, time.Second, l.RetryAfter())
}

func TestAuthLimiter_Cleanup(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewAuthLimiter(1, 1)
	defer l.Stop()
	l.now = func() time.Time { return now }

	l.Fail("10.0.0.1")
	now = now.Add(l.entryTTL + time.Second)
	l.cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.limiters)
}

func TestAuthLimiter_Disabled(t *testing.T) {
	l := NewAuthLimiter(0, 5)
	l.Fail("10.0.0.1")
	assert.False(t, l.Blocked("10.0.0.1"))
	l.Stop()

	var nilLimiter *AuthLimiter
	nilLimiter.Fail("10.0.0.1")
	assert.False(t, nilLimiter.Blocked("10.0.0.1"))
}
