// SPDX-License-Identifier: MIT

// Package resilience guards upstream dependencies with circuit breakers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/saytube/internal/metrics"
)

// State is the breaker position.
type State uint8

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned without calling the guarded function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	defaultThreshold = 3
	defaultCooldown  = 30 * time.Second
)

// CircuitBreaker opens after a run of consecutive failures. Once the cooldown
// has elapsed exactly one call is let through as a probe; its outcome closes
// the breaker or restarts the cooldown.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	counts    func(error) bool

	mu       sync.Mutex
	state    State
	streak   int
	openedAt time.Time
	probe    bool
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// WithFailureFilter decides which errors count against the breaker. Errors
// it rejects are returned to the caller and treated as successes. Without
// a filter every error except context cancellation counts.
func WithFailureFilter(counts func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.counts = counts }
}

// NewCircuitBreaker returns a closed breaker. Non-positive arguments fall
// back to 3 failures and a 30s cooldown.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		counts:    func(err error) bool { return !errors.Is(err, context.Canceled) },
	}
	if cb.threshold <= 0 {
		cb.threshold = defaultThreshold
	}
	if cb.cooldown <= 0 {
		cb.cooldown = defaultCooldown
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetCircuitBreakerState(name, StateClosed.String())
	return cb
}

// Execute runs fn unless the breaker refuses the call.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.settle(err != nil && cb.counts(err))
	return err
}

// State reports the current position without advancing it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateClosed {
		return nil
	}
	if cb.probe {
		return ErrCircuitOpen
	}
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) < cb.cooldown {
		return ErrCircuitOpen
	}
	cb.move(StateHalfOpen)
	cb.probe = true
	return nil
}

func (cb *CircuitBreaker) settle(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	probed := cb.probe
	cb.probe = false
	if !failed {
		cb.streak = 0
		cb.move(StateClosed)
		return
	}

	cb.streak++
	switch {
	case probed:
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.trip()
	case cb.state == StateClosed && cb.streak >= cb.threshold:
		metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
		cb.trip()
	}
}

// trip opens the breaker and restarts the cooldown. Caller holds cb.mu.
func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.move(StateOpen)
}

// Caller holds cb.mu.
func (cb *CircuitBreaker) move(to State) {
	if cb.state == to {
		return
	}
	cb.state = to
	metrics.SetCircuitBreakerState(cb.name, to.String())
}
