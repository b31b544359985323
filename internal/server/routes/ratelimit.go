package routes

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AuthLimiter throttles clients that keep presenting bad credentials. Only
// failures spend tokens; an IP is blocked once its bucket is empty.
type AuthLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry

	// rps is the refill rate of failed attempts per second
	rps float64

	// burst is the number of failures tolerated back to back
	burst int

	cleanupInterval time.Duration
	entryTTL        time.Duration
	now             func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewAuthLimiter creates a per-IP failure limiter. rps <= 0 disables it.
func NewAuthLimiter(rps float64, burst int) *AuthLimiter {
	l := &AuthLimiter{
		limiters:        make(map[string]*limiterEntry),
		rps:             rps,
		burst:           burst,
		cleanupInterval: 5 * time.Minute,
		entryTTL:        10 * time.Minute,
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
	}
	if l.enabled() {
		go l.cleanupLoop()
	}
	return l
}

func (l *AuthLimiter) enabled() bool {
	return l != nil && l.rps > 0 && l.burst > 0
}

// Blocked reports whether ip has exhausted its failure budget.
func (l *AuthLimiter) Blocked(ip string) bool {
	if !l.enabled() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[ip]
	if !ok {
		return false
	}
	return entry.limiter.TokensAt(l.now()) < 1
}

// Fail records one failed attempt from ip.
func (l *AuthLimiter) Fail(ip string) {
	if !l.enabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastAccess = now
	entry.limiter.AllowN(now, 1)
}

// RetryAfter is how long a blocked client should wait for one more attempt.
func (l *AuthLimiter) RetryAfter() time.Duration {
	if !l.enabled() {
		return 0
	}
	return time.Duration(float64(time.Second) / l.rps)
}

// Stop ends the cleanup goroutine.
func (l *AuthLimiter) Stop() {
	if !l.enabled() {
		return
	}
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

func (l *AuthLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *AuthLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.entryTTL)
	for ip, entry := range l.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}
