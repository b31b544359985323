package sentimentgate

import (
	"sync"
	"time"
)

const (
	healthFailureThreshold = 3
	healthFailureWindow    = 5 * time.Minute
	healthUnhealthyPeriod  = 30 * time.Second
)

// HealthState describes the health of an inference engine.
type HealthState int

const (
	HealthHealthy HealthState = iota
	HealthUnhealthy
	HealthHalfOpen
)

func (h HealthState) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	case HealthHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// HealthTracker tracks per-engine health using a circuit breaker pattern.
// Only engine failures are recorded; missing objects are the caller's problem.
type HealthTracker struct {
	mu      sync.Mutex
	engines map[string]*engineHealth
	now     func() time.Time
}

type engineHealth struct {
	state       HealthState
	failures    []time.Time // sliding window of failure timestamps
	unhealthyAt time.Time
	trialAt     time.Time // set while a half-open trial call is in flight
}

// NewHealthTracker creates a new HealthTracker.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		engines: make(map[string]*engineHealth),
		now:     time.Now,
	}
}

// GetHealth returns the current health state for an engine. It does not
// claim the half-open trial slot; use Allow before calling the engine.
func (h *HealthTracker) GetHealth(engine string) HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()

	eh, ok := h.engines[engine]
	if !ok {
		return HealthHealthy
	}
	h.refresh(eh)
	return eh.state
}

// Allow reports whether a call to engine may proceed. While half-open only
// one caller at a time is admitted; a trial call that never reports back is
// replaced after healthUnhealthyPeriod.
func (h *HealthTracker) Allow(engine string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	eh, ok := h.engines[engine]
	if !ok {
		return true
	}
	h.refresh(eh)

	switch eh.state {
	case HealthHealthy:
		return true
	case HealthHalfOpen:
		now := h.now()
		if !eh.trialAt.IsZero() && now.Sub(eh.trialAt) < healthUnhealthyPeriod {
			return false
		}
		eh.trialAt = now
		return true
	default:
		return false
	}
}

// refresh moves an open breaker to half-open once the unhealthy period has
// elapsed. Callers hold h.mu.
func (h *HealthTracker) refresh(eh *engineHealth) {
	if eh.state == HealthUnhealthy && h.now().Sub(eh.unhealthyAt) >= healthUnhealthyPeriod {
		eh.state = HealthHalfOpen
		eh.trialAt = time.Time{}
	}
}

// RecordSuccess records a successful engine call.
func (h *HealthTracker) RecordSuccess(engine string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	eh := h.getOrCreate(engine)
	eh.state = HealthHealthy
	eh.failures = eh.failures[:0]
	eh.trialAt = time.Time{}
}

// RecordFailure records a failed engine call.
func (h *HealthTracker) RecordFailure(engine string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	eh := h.getOrCreate(engine)
	now := h.now()

	// A failed half-open trial reopens the breaker immediately.
	if eh.state == HealthHalfOpen {
		eh.state = HealthUnhealthy
		eh.unhealthyAt = now
		eh.trialAt = time.Time{}
		return
	}
	if eh.state == HealthUnhealthy {
		return
	}

	cutoff := now.Add(-healthFailureWindow)
	valid := eh.failures[:0]
	for _, t := range eh.failures {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	eh.failures = append(valid, now)

	if len(eh.failures) >= healthFailureThreshold {
		eh.state = HealthUnhealthy
		eh.unhealthyAt = now
	}
}

func (h *HealthTracker) getOrCreate(engine string) *engineHealth {
	eh, ok := h.engines[engine]
	if !ok {
		eh = &engineHealth{state: HealthHealthy}
		h.engines[engine] = eh
	}
	return eh
}
