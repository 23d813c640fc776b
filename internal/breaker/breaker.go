// Package breaker guards calls to downstream dependencies with named
// circuit breakers. Each breaker tracks consecutive failures and stops
// traffic to a dependency that keeps failing, probing it again after a
// cooldown instead of hammering it.
package breaker

import (
	"sync"
	"time"

	"gatekeeper/internal/models"
)

// State is the breaker lifecycle position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker is one named circuit. All methods are safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	resetTimeout     time.Duration
	halfOpenRequests int

	state             State
	consecutiveFails  int
	halfOpenInFlight  int
	halfOpenSuccesses int
	openedAt          time.Time
	lastFailureAt     time.Time

	now          func() time.Time
	onTransition func(name string, from, to State)
}

// Snapshot is a point-in-time view of one breaker, for the admin surface.
type Snapshot struct {
	Name              string    `json:"name"`
	State             State     `json:"state"`
	ConsecutiveFails  int       `json:"consecutive_failures"`
	HalfOpenSuccesses int       `json:"half_open_successes"`
	OpenedAt          time.Time `json:"opened_at"`
	LastFailureAt     time.Time `json:"last_failure_at"`
}

func newBreaker(name string, cfg models.Breaker, onTransition func(string, State, State)) *Breaker {
	return &Breaker{
		name:             name,
		failureThreshold: cfg.FailureThreshold,
		resetTimeout:     cfg.ResetTimeout,
		halfOpenRequests: cfg.HalfOpenRequests,
		state:            StateClosed,
		now:              time.Now,
		onTransition:     onTransition,
	}
}

// Allow reports whether a call may proceed right now. An open breaker whose
// cooldown has elapsed moves to half-open and admits up to
// halfOpenRequests concurrent probes; further callers are turned away until
// the probes settle.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false
		}
		b.transition(StateHalfOpen)
		b.halfOpenInFlight = 1
		b.halfOpenSuccesses = 0
		return true
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.halfOpenRequests {
			return false
		}
		b.halfOpenInFlight++
		return true
	}
	return false
}

// OnSuccess records a successful call. Once every half-open probe has
// succeeded the breaker closes and the failure count starts over.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails = 0
	case StateHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.halfOpenRequests {
			b.transition(StateClosed)
			b.consecutiveFails = 0
			b.halfOpenInFlight = 0
			b.halfOpenSuccesses = 0
		}
	}
}

// OnFailure records a failed call. In the closed state the breaker opens
// after failureThreshold consecutive failures; any half-open failure
// reopens it immediately and restarts the cooldown.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = b.now()

	switch b.state {
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.failureThreshold {
			b.transition(StateOpen)
			b.openedAt = b.now()
		}
	case StateHalfOpen:
		b.transition(StateOpen)
		b.openedAt = b.now()
		b.halfOpenInFlight = 0
		b.halfOpenSuccesses = 0
	}
}

// RetryAfter reports how long a rejected caller should wait before the
// breaker may admit a probe: the remaining cooldown when open, the full
// reset timeout otherwise.
func (b *Breaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if remaining := b.resetTimeout - b.now().Sub(b.openedAt); remaining > 0 {
			return remaining
		}
	}
	return b.resetTimeout
}

// State returns the stored state. An open breaker past its cooldown still
// reads open here; only a call through Allow moves it to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the breaker's current state for reporting.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:              b.name,
		State:             b.state,
		ConsecutiveFails:  b.consecutiveFails,
		HalfOpenSuccesses: b.halfOpenSuccesses,
		OpenedAt:          b.openedAt,
		LastFailureAt:     b.lastFailureAt,
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onTransition != nil {
		b.onTransition(b.name, from, to)
	}
}
