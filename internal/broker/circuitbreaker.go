package broker

import (
	"sync"
	"time"
)

// CircuitBreaker trips after a run of consecutive broker-call failures and
// refuses further calls for a cooldown, then allows a single half-open
// probe before fully resetting or re-tripping.
type CircuitBreaker struct {
	mu                  sync.Mutex
	failureThreshold    int
	cooldown            time.Duration
	consecutiveFailures int
	trippedAt           time.Time
	tripped             bool
	halfOpenProbeInFlight bool
}

func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{failureThreshold: failureThreshold, cooldown: cooldown}
}

// Allow reports whether a call may proceed. When the breaker is tripped
// but the cooldown has elapsed, it allows exactly one probe call through
// and marks it in flight so concurrent callers don't all probe at once.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.tripped {
		return true
	}
	if c.halfOpenProbeInFlight {
		return false
	}
	if time.Since(c.trippedAt) >= c.cooldown {
		c.halfOpenProbeInFlight = true
		return true
	}
	return false
}

// RecordSuccess resets the breaker to fully closed.
func (c *CircuitBreaker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFailures = 0
	c.tripped = false
	c.halfOpenProbeInFlight = false
}

// RecordFailure increments the failure streak, tripping the breaker once
// the threshold is reached (or immediately re-tripping a failed probe).
func (c *CircuitBreaker) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.halfOpenProbeInFlight {
		c.halfOpenProbeInFlight = false
		c.tripped = true
		c.trippedAt = time.Now()
		return
	}

	c.consecutiveFailures++
	if c.consecutiveFailures >= c.failureThreshold {
		c.tripped = true
		c.trippedAt = time.Now()
	}
}

// Tripped reports the current trip state for health reporting.
func (c *CircuitBreaker) Tripped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tripped
}
