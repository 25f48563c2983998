// Package circuitbreaker guards calls to unreliable resources. Once
// consecutive failures cross a threshold the breaker opens and rejects
// calls without touching the resource; after a recovery timeout a
// single probe call decides whether the breaker closes again.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"
)

// State represents the breaker state
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// CircuitOpenError is returned when a call is rejected because the
// breaker is open. Callers treat it as a distinct, recoverable-by-
// fallback condition, separate from the operation's own error kinds.
type CircuitOpenError struct {
	Name     string
	Failures int
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open after %d failures", e.Name, e.Failures)
}

// StateChangeFunc is notified on every state transition
type StateChangeFunc func(name string, from, to State)

// Stats is a snapshot of the breaker's bookkeeping
type Stats struct {
	Name             string     `json:"name"`
	State            State      `json:"state"`
	FailureCount     int        `json:"failure_count"`
	FailureThreshold int        `json:"failure_threshold"`
	RecoveryTimeout  string     `json:"recovery_timeout"`
	OpenedAt         *time.Time `json:"opened_at,omitempty"`
}

// CircuitBreaker wraps a single risky operation. One instance guards
// one resource for the process lifetime and is safe for concurrent use:
// all accounting runs under a single critical section per Call.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	onStateChange    StateChangeFunc

	mu           sync.Mutex
	state        State
	failureCount int
	openedAt     *time.Time

	now func() time.Time
}

// Option configures a CircuitBreaker
type Option func(*CircuitBreaker)

// WithStateChangeFunc registers a listener for state transitions
func WithStateChangeFunc(fn StateChangeFunc) Option {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

// WithClock overrides the time source. Used by tests to drive the
// recovery window without sleeping.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// New creates a closed breaker. failureThreshold must be positive;
// recoveryTimeout governs how long the breaker stays open before a
// probe is allowed.
func New(name string, failureThreshold int, recoveryTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}

	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Call routes fn through the breaker. While open and inside the
// recovery window it returns *CircuitOpenError without invoking fn.
// Otherwise fn runs and its own error, if any, is returned to the
// caller after the breaker updates its bookkeeping.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn()
	cb.afterCall(err)
	return err
}

// beforeCall decides whether the operation may run, transitioning
// open -> half-open when the recovery timeout has elapsed.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		// A probe is already in flight; only one caller at a time may
		// test the resource.
		return &CircuitOpenError{Name: cb.name, Failures: cb.failureCount}
	}

	if cb.openedAt != nil && cb.now().Sub(*cb.openedAt) >= cb.recoveryTimeout {
		cb.transition(StateHalfOpen)
		return nil
	}

	return &CircuitOpenError{Name: cb.name, Failures: cb.failureCount}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
		return
	}
	cb.onSuccess()
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		// Probe succeeded: the resource recovered.
		cb.failureCount = 0
		cb.openedAt = nil
		cb.transition(StateClosed)
	case StateClosed:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) onFailure() {
	switch cb.state {
	case StateHalfOpen:
		// Probe failed: restart the recovery window.
		now := cb.now()
		cb.openedAt = &now
		cb.transition(StateOpen)
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			now := cb.now()
			cb.openedAt = &now
			cb.transition(StateOpen)
		}
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Stats returns a snapshot of the breaker's counters
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stats := Stats{
		Name:             cb.name,
		State:            cb.state,
		FailureCount:     cb.failureCount,
		FailureThreshold: cb.failureThreshold,
		RecoveryTimeout:  cb.recoveryTimeout.String(),
	}
	if cb.openedAt != nil {
		opened := *cb.openedAt
		stats.OpenedAt = &opened
	}
	return stats
}

// Reset forces the breaker back to closed and clears all counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.openedAt = nil
	cb.transition(StateClosed)
}
