// Package circuitbreaker implements a three-state (closed/open/half-open)
// circuit breaker for wrapping calls to a remote dependency, so a string
// of failures against it stops generating more load than it can handle.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Execute without calling fn when the breaker is
// open and the reset timeout hasn't elapsed yet.
var ErrOpen = errors.New("circuitbreaker: circuit is open")

type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config tunes when a breaker trips and how long it stays tripped.
type Config struct {
	MaxFailures  int64
	ResetTimeout time.Duration
}

// Breaker wraps calls against a single remote dependency. Safe for
// concurrent use.
type Breaker struct {
	cfg Config

	mu            sync.Mutex
	state         State
	failures      int64
	successes     int64
	requests      int64
	lastFailure   time.Time
	lastSuccess   time.Time
	nextRetryTime time.Time
}

// New constructs a Breaker in the closed state. A zero Config falls back
// to 5 consecutive failures tripping a 30 second open window.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: Closed}
}

// Execute runs fn if the breaker will allow it, tracking the outcome.
// Returns ErrOpen without running fn when the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	b.requests++
	if b.state == Open {
		if time.Now().Before(b.nextRetryTime) {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.failures >= b.cfg.MaxFailures {
			b.state = Open
			b.nextRetryTime = time.Now().Add(b.cfg.ResetTimeout)
		}
		return err
	}

	b.successes++
	b.lastSuccess = time.Now()
	b.failures = 0
	if b.state == HalfOpen {
		b.state = Closed
	}
	return nil
}

// State reports the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats snapshots counters for diagnostics or metrics export.
type Stats struct {
	State         State
	Failures      int64
	Successes     int64
	Requests      int64
	LastFailure   time.Time
	LastSuccess   time.Time
	NextRetryTime time.Time
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:         b.state,
		Failures:      b.failures,
		Successes:     b.successes,
		Requests:      b.requests,
		LastFailure:   b.lastFailure,
		LastSuccess:   b.lastSuccess,
		NextRetryTime: b.nextRetryTime,
	}
}
