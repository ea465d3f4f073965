// Package resilience carries the failure-handling primitives shared by the
// gateway and the asset node: a circuit breaker around node dialing and a
// bounded worker pool for compensation fan-out.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError is the rejection handed out while the circuit is open. It
// carries the remaining cooldown so edge handlers can surface a retry hint.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	wait := max(e.RetryAfter, 0)
	if e.Name == "" {
		return fmt.Sprintf("%v: retry in %s", ErrCircuitOpen, wait)
	}
	return fmt.Sprintf("%v for %s: retry in %s", ErrCircuitOpen, e.Name, wait)
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"
	CircuitOpen     CircuitBreakerState = "open"
	CircuitHalfOpen CircuitBreakerState = "half_open"
)

// CircuitBreakerConfig tunes one breaker. Zero values fall back to defaults
// sized for a gateway talking to a single asset node.
type CircuitBreakerConfig struct {
	Name              string
	FailureThreshold  int
	SuccessThreshold  int
	OpenTimeout       time.Duration
	HalfOpenMaxFlight int
}

// CircuitBreaker sheds calls to a peer that keeps failing. Closed passes
// everything through; FailureThreshold consecutive failures open it for
// OpenTimeout, after which a bounded number of probe calls decide between
// closing again and another open interval.
type CircuitBreaker struct {
	mu  sync.Mutex
	cfg CircuitBreakerConfig

	state     CircuitBreakerState
	failures  int
	successes int
	probes    int
	openUntil time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}
	if cfg.HalfOpenMaxFlight <= 0 {
		cfg.HalfOpenMaxFlight = 1
	}
	return &CircuitBreaker{cfg: cfg, state: CircuitClosed}
}

// State reports the current state, promoting open to half-open when the
// cooldown has elapsed.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advanceLocked(time.Now())
	return cb.state
}

// Execute runs fn under the breaker. A context.Canceled result counts as
// neither success nor failure: the caller walked away, the peer proved
// nothing about its health.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.settle(err)
	return err
}

// admit decides whether a call may start.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.advanceLocked(now)

	switch cb.state {
	case CircuitOpen:
		return cb.rejectionLocked(now)
	case CircuitHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMaxFlight {
			return cb.rejectionLocked(now)
		}
		cb.probes++
	}
	return nil
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen && cb.probes > 0 {
		cb.probes--
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	if err != nil {
		if cb.state == CircuitHalfOpen {
			cb.tripLocked()
			return
		}
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.tripLocked()
		}
		return
	}

	if cb.state == CircuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.resetLocked(CircuitClosed)
		}
		return
	}
	cb.failures = 0
}

func (cb *CircuitBreaker) advanceLocked(now time.Time) {
	if cb.state == CircuitOpen && !now.Before(cb.openUntil) {
		cb.resetLocked(CircuitHalfOpen)
	}
}

func (cb *CircuitBreaker) tripLocked() {
	cb.resetLocked(CircuitOpen)
	cb.openUntil = time.Now().Add(cb.cfg.OpenTimeout)
}

func (cb *CircuitBreaker) resetLocked(state CircuitBreakerState) {
	cb.state = state
	cb.failures = 0
	cb.successes = 0
	cb.probes = 0
}

func (cb *CircuitBreaker) rejectionLocked(now time.Time) error {
	return &CircuitOpenError{
		Name:       cb.cfg.Name,
		RetryAfter: max(cb.openUntil.Sub(now), 0),
	}
}
