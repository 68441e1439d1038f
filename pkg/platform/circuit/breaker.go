// Package circuit provides a two-state circuit breaker for a primary backend
// with a local fallback.
package circuit

import (
	"context"
	"sync"
)

type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// StateChange reports a transition caused by the last recorded result.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker counts consecutive results of the primary path. It opens after
// failureThreshold consecutive failures and closes again after
// successThreshold consecutive successes. The primary is always attempted;
// the state only decides whether a failure is served by the fallback.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
	onChange         func(name string, to State)
}

type Option func(*Breaker)

// WithFailureThreshold defaults to 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold defaults to 3.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithStateListener is called, outside the lock, on every transition.
func WithStateListener(fn func(name string, to State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 3,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// RecordFailure reports whether the caller should use the fallback.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	b.failures++
	b.successes = 0
	switch {
	case b.state == StateOpen:
		useFallback = true
	case b.failures >= b.failureThreshold:
		b.state = StateOpen
		useFallback, change = true, StateChange{Opened: true}
	}
	b.mu.Unlock()
	b.notify(change)
	return useFallback, change
}

// RecordSuccess reports whether the primary result should be used. While
// open, successes only count towards closing.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	if b.state == StateOpen {
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.failures, b.successes = 0, 0
			usePrimary, change = true, StateChange{Closed: true}
		}
	} else {
		b.failures = 0
		usePrimary = true
	}
	b.mu.Unlock()
	b.notify(change)
	return usePrimary, change
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures, b.successes = 0, 0
}

// Execute runs primary and, when the breaker is or becomes open on its
// failure, fallback. Below the threshold the primary error is returned.
func (b *Breaker) Execute(ctx context.Context, primary, fallback func(context.Context) error) error {
	err := primary(ctx)
	if err == nil {
		b.RecordSuccess()
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if useFallback, _ := b.RecordFailure(); useFallback && fallback != nil {
		return fallback(ctx)
	}
	return err
}

func (b *Breaker) notify(change StateChange) {
	if b.onChange == nil {
		return
	}
	switch {
	case change.Opened:
		b.onChange(b.name, StateOpen)
	case change.Closed:
		b.onChange(b.name, StateClosed)
	}
}
