package breaker

import (
	"errors"
	"sync"
	"time"
)

// State captures circuit breaker states.
type State int

const (
	// StateClosed indicates normal operation.
	StateClosed State = iota
	// StateOpen indicates the breaker is rejecting calls.
	StateOpen
	// StateHalfOpen indicates a single trial call is permitted.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("breaker: circuit open")

// Config controls thresholds for state transitions.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from Closed to Open.
	FailureThreshold int `mapstructure:"failure_threshold" yaml:"failure_threshold" json:"failure_threshold"`
	// ResetTimeout is how long the breaker stays Open before admitting a
	// single probe call.
	ResetTimeout time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout" json:"reset_timeout"`
}

// DefaultConfig returns sensible defaults for OCR engine calls.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Validate checks configuration for invalid values.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return errors.New("failure threshold must be positive")
	}
	if c.ResetTimeout <= 0 {
		return errors.New("reset timeout must be positive")
	}
	return nil
}

// Breaker tracks call outcomes and fails fast while the guarded engine is
// unhealthy. It wraps single attempts only; retrying is the caller's job.
type Breaker struct {
	mu sync.Mutex

	cfg           Config
	state         State
	failures      int       // consecutive failures while Closed
	openedAt      time.Time // last transition into Open
	probeInFlight bool      // HalfOpen admits exactly one call

	onTransition func(from, to State) // optional, called outside hot path decisions
	now          func() time.Time
}

// New creates a breaker in the Closed state.
func New(cfg Config) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Breaker{cfg: cfg, state: StateClosed, now: time.Now}, nil
}

// OnTransition registers a callback invoked on every state change, e.g. for
// metrics. Must be called before the breaker is shared across goroutines.
func (b *Breaker) OnTransition(fn func(from, to State)) {
	b.onTransition = fn
}

// State returns the current state, advancing Open to HalfOpen if the reset
// timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state
}

// Allow reports whether a call may proceed. A true result in HalfOpen claims
// the single probe slot; the caller must report the outcome via Success or
// Failure exactly once.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpenLocked()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if b.probeInFlight {
			return ErrOpen
		}
		b.probeInFlight = true
		return nil
	default:
		return ErrOpen
	}
}

// Success records a successful call outcome.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		// Closed is only reachable from HalfOpen via a successful probe.
		b.probeInFlight = false
		b.failures = 0
		b.transitionLocked(StateClosed)
	case StateClosed:
		b.failures = 0
	case StateOpen:
		// A straggler finishing after the breaker tripped; ignore.
	}
}

// Failure records a failed call outcome.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		// Probe failed; restart the Open timer.
		b.probeInFlight = false
		b.openedAt = b.now()
		b.transitionLocked(StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.now()
			b.transitionLocked(StateOpen)
		}
	case StateOpen:
		// Already open; stragglers don't restart the timer.
	}
}

// Abandon records a call that ended without an engine outcome, such as the
// caller cancelling mid-flight. A claimed probe slot must not leak: the
// breaker reopens and the reset timer restarts, so the next probe is admitted
// after the usual wait. In Closed the failure streak is untouched.
func (b *Breaker) Abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.probeInFlight {
		b.probeInFlight = false
		b.openedAt = b.now()
		b.transitionLocked(StateOpen)
	}
}

// Failures returns the consecutive-failure counter.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) maybeHalfOpenLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		b.probeInFlight = false
		b.transitionLocked(StateHalfOpen)
	}
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onTransition != nil {
		b.onTransition(from, to)
	}
}
