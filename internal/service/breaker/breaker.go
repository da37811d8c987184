// Package breaker guards an unstable call (the merge step) with a consecutive-failure
// circuit breaker: closed, open for a cooldown, then closed again on the next call.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"FinResolve/internal/domain/models"
	drepo "FinResolve/internal/domain/repository"
	applogger "FinResolve/pkg/logger"
)

// ErrOpen is returned without invoking the wrapped call while the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

// PanicError wraps a panic recovered from the wrapped call.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	metrics   drepo.Metrics
	log       *applogger.Logger

	mu          sync.Mutex
	failures    int
	open        bool
	lastFailure time.Time
}

// Option configures Breaker.
type Option func(*Breaker)

// WithThreshold sets the number of consecutive failures that opens the breaker.
func WithThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long the breaker stays open after the last failure.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

func WithMetrics(m drepo.Metrics) Option {
	return func(b *Breaker) { b.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(b *Breaker) { b.log = l }
}

// New creates a closed breaker. Defaults: 5 failures, 300s cooldown.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: 5,
		cooldown:  300 * time.Second,
		now:       time.Now,
		log:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Call runs fn unless the breaker is open. Errors and panics from fn count as failures;
// a nil return resets the failure count.
func (b *Breaker) Call(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}

	err := b.run(fn)
	if err != nil {
		b.failure(err)
		return err
	}
	b.success()
	return nil
}

// State returns a snapshot for status endpoints.
func (b *Breaker) State() models.CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.CircuitBreakerState{
		FailureCount:    b.failures,
		IsOpen:          b.open,
		LastFailureTime: b.lastFailure,
	}
}

// allow reports whether the call may proceed, closing an open breaker whose cooldown elapsed.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.now().Sub(b.lastFailure) <= b.cooldown {
		return false
	}
	b.open = false
	b.failures = 0
	b.log.Info("circuit breaker closed", applogger.String("breaker", b.name))
	if b.metrics != nil {
		b.metrics.RecordBreakerState(false)
	}
	return true
}

func (b *Breaker) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}

func (b *Breaker) failure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if b.open || b.failures < b.threshold {
		return
	}
	b.open = true
	b.log.Error("circuit breaker opened",
		applogger.String("breaker", b.name),
		applogger.Int("failures", b.failures),
		applogger.Error(err),
	)
	if b.metrics != nil {
		b.metrics.RecordBreakerState(true)
	}
}

func (b *Breaker) success() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}
