package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/civicstream/civic-auth/internal/config"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// invoking the wrapped function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker isolates callers from a failing downstream dependency. It is
// constructed explicitly by whichever component owns the downstream call
// and injected there; there is no process-wide registry.
//
// Closed: calls pass through, consecutive failures are counted.
// Open: calls fail fast until the reset timeout has elapsed.
// Half-Open: trial calls pass through; a run of successes closes the
// circuit, any failure reopens it.
type Breaker struct {
	config *config.BreakerConfig
	now    func() time.Time

	mu                sync.Mutex
	state             State
	failures          int
	halfOpenSuccesses int
	lastFailure       time.Time
}

func New(config *config.BreakerConfig) *Breaker {
	return &Breaker{
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn under the breaker's admission policy. The error from fn
// is returned as-is; a fast-failed call returns ErrCircuitOpen.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn()
	b.afterCall(err == nil)
	return err
}

// State reports the current state, applying the open-to-half-open
// transition if the reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.state
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked()
	if b.state == StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

func (b *Breaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		switch b.state {
		case StateHalfOpen:
			b.halfOpenSuccesses++
			if b.halfOpenSuccesses >= b.config.HalfOpenSuccessThreshold {
				b.state = StateClosed
				b.failures = 0
				b.halfOpenSuccesses = 0
			}
		case StateClosed:
			b.failures = 0
		}
		return
	}

	b.lastFailure = b.now()
	switch b.state {
	case StateHalfOpen:
		// Any trial failure reopens immediately.
		b.state = StateOpen
		b.halfOpenSuccesses = 0
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.state = StateOpen
		}
	}
}

func (b *Breaker) refreshLocked() {
	if b.state == StateOpen && b.now().Sub(b.lastFailure) >= b.config.ResetTimeout {
		b.state = StateHalfOpen
		b.halfOpenSuccesses = 0
	}
}
