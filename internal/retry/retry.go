package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy is an immutable description of the retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	// BaseDelay seeds the exponential backoff before the second attempt.
	BaseDelay time.Duration `mapstructure:"base_delay" yaml:"base_delay" json:"base_delay"`
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay" json:"max_delay"`
}

// DefaultPolicy returns the default bounded backoff for engine calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Validate checks the policy for invalid values.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return errors.New("max attempts must be positive")
	}
	if p.BaseDelay <= 0 {
		return errors.New("base delay must be positive")
	}
	if p.MaxDelay < p.BaseDelay {
		return errors.New("max delay must be at least base delay")
	}
	return nil
}

// Backoff returns the pre-jitter delay before attempt k (1-based). The first
// attempt carries no delay; attempt k>=2 waits min(maxDelay, base*2^(k-2)).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 2; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ExhaustedError wraps the last error once all attempts are spent.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: %d attempts exhausted: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Controller executes calls under a Policy. The zero value is not usable;
// construct with New.
type Controller struct {
	policy Policy

	// jitter returns a uniform duration in [0, d). Replaced in tests.
	jitter func(d time.Duration) time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a retry controller for the given policy.
func New(policy Policy) (*Controller, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		policy: policy,
		jitter: uniformJitter,
		sleep:  sleepContext,
	}, nil
}

// Policy returns the controller's immutable policy.
func (c *Controller) Policy() Policy { return c.policy }

// Do runs fn up to MaxAttempts times. A nil error stops immediately. The
// retryable predicate decides which errors earn another attempt; permanent
// errors surface as-is. When attempts run out the last error is wrapped in
// an ExhaustedError.
func (c *Controller) Do(ctx context.Context, retryable func(error) bool, fn func(ctx context.Context) error) error {
	var last error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if delay := c.policy.Backoff(attempt); delay > 0 {
			if err := c.sleep(ctx, delay+c.jitter(delay)); err != nil {
				return err
			}
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		if !retryable(last) {
			return last
		}
	}
	return &ExhaustedError{Attempts: c.policy.MaxAttempts, Last: last}
}

func uniformJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)))
}

// sleepContext waits for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
