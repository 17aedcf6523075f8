// Package ocr orchestrates resilient calls against the external OCR engine:
// validation, circuit breaking, bounded retries, pooled engine leases and a
// hard per-call timeout.
package ocr

import (
	"context"
	"errors"
	"time"

	"github.com/pantrysnap/pantrysnap/internal/breaker"
	"github.com/pantrysnap/pantrysnap/internal/engine"
	"github.com/pantrysnap/pantrysnap/internal/preprocess"
	"github.com/pantrysnap/pantrysnap/internal/retry"
	"github.com/pantrysnap/pantrysnap/internal/validate"
)

// Submission is one image upload. Ephemeral: constructed per call and
// discarded after processing.
type Submission struct {
	// Image is the raw encoded image.
	Image []byte
	// Format is the declared format string ("png", "jpeg", ...).
	Format string
	// Lang keys the engine instance pool ("eng", "eng+fra").
	Lang engine.Key
}

// Result carries the extracted text plus source metadata.
type Result struct {
	Text     string
	Lang     engine.Key
	Duration time.Duration
}

// Config assembles the resilience settings around the engine.
type Config struct {
	Validate   validate.Config   `mapstructure:"validate" yaml:"validate" json:"validate"`
	Breaker    breaker.Config    `mapstructure:"breaker" yaml:"breaker" json:"breaker"`
	Retry      retry.Policy      `mapstructure:"retry" yaml:"retry" json:"retry"`
	Preprocess preprocess.Config `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	// PreprocessEnabled toggles the cleanup pass before engine submission.
	PreprocessEnabled bool `mapstructure:"preprocess_enabled" yaml:"preprocess_enabled" json:"preprocess_enabled"`
	// CallTimeout is the hard wall-clock bound on a single engine call.
	CallTimeout time.Duration `mapstructure:"call_timeout" yaml:"call_timeout" json:"call_timeout"`
}

// DefaultConfig returns the stock invoker settings.
func DefaultConfig() Config {
	return Config{
		Validate:          validate.DefaultConfig(),
		Breaker:           breaker.DefaultConfig(),
		Retry:             retry.DefaultPolicy(),
		Preprocess:        preprocess.DefaultConfig(),
		PreprocessEnabled: true,
		CallTimeout:       30 * time.Second,
	}
}

// Invoker composes validator, breaker, retry controller and instance pool
// around the engine. Safe for concurrent use.
type Invoker struct {
	cfg       Config
	validator *validate.Validator
	breaker   *breaker.Breaker
	retrier   *retry.Controller
	pool      *engine.Pool
}

// New wires an invoker around the given engine factory.
func New(cfg Config, factory engine.Factory) (*Invoker, error) {
	if cfg.CallTimeout <= 0 {
		return nil, errors.New("ocr: call timeout must be positive")
	}
	v, err := validate.New(cfg.Validate)
	if err != nil {
		return nil, err
	}
	b, err := breaker.New(cfg.Breaker)
	if err != nil {
		return nil, err
	}
	r, err := retry.New(cfg.Retry)
	if err != nil {
		return nil, err
	}
	if cfg.PreprocessEnabled {
		if err := cfg.Preprocess.Validate(); err != nil {
			return nil, err
		}
	}
	p, err := engine.NewPool(factory)
	if err != nil {
		return nil, err
	}
	return &Invoker{cfg: cfg, validator: v, breaker: b, retrier: r, pool: p}, nil
}

// Breaker exposes the invoker's breaker, e.g. for metrics wiring.
func (inv *Invoker) Breaker() *breaker.Breaker { return inv.breaker }

// Close shuts down the engine pool.
func (inv *Invoker) Close() error { return inv.pool.Close() }

// Invoke runs one submission: validate, ask the breaker, then checkout and
// call the engine under retry control and the hard call timeout. The final
// outcome is reported to the breaker exactly once; a breaker rejection is
// not counted as a new failure.
func (inv *Invoker) Invoke(ctx context.Context, sub Submission) (*Result, error) {
	start := time.Now()

	if err := inv.validator.Check(sub.Image, sub.Format); err != nil {
		return nil, NewError(KindValidation, "validate", err)
	}
	if err := sub.Lang.Validate(); err != nil {
		return nil, NewError(KindValidation, "validate", err)
	}

	image := sub.Image
	if inv.cfg.PreprocessEnabled {
		cleaned, err := preprocess.Run(inv.cfg.Preprocess, sub.Image)
		if err != nil {
			// The header validated but the body did not decode.
			return nil, NewError(KindValidation, "preprocess", err)
		}
		image = cleaned
	}

	if err := inv.breaker.Allow(); err != nil {
		e := NewError(KindCircuitOpen, "breaker", err)
		e.Lang = string(sub.Lang)
		return nil, e
	}

	var text string
	err := inv.retrier.Do(ctx, IsRetryable, func(ctx context.Context) error {
		out, err := inv.attempt(ctx, sub.Lang, image)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			e := NewError(KindRetryExhausted, "invoke", err)
			e.Lang = string(sub.Lang)
			err = e
		}
		// Untagged errors are the caller's own context going away, not an
		// engine outcome; the breaker only records engine health. It still
		// has to hear about the aborted call, or a claimed probe slot would
		// never free.
		if KindOf(err) != "" {
			inv.breaker.Failure()
		} else {
			inv.breaker.Abandon()
		}
		return nil, err
	}

	inv.breaker.Success()
	return &Result{Text: text, Lang: sub.Lang, Duration: time.Since(start)}, nil
}

// attempt performs a single checkout and engine call. The lease is released
// on every exit path; on timeout the release is deferred to the moment the
// abandoned call actually returns so the handle is never closed while busy.
func (inv *Invoker) attempt(ctx context.Context, key engine.Key, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lease, err := inv.pool.Checkout(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e := NewError(KindInitialization, "pool.checkout", err)
		e.Lang = string(key)
		return "", e
	}

	callCtx, cancel := context.WithTimeout(ctx, inv.cfg.CallTimeout)
	defer cancel()

	type callResult struct {
		text string
		err  error
	}
	done := make(chan callResult, 1)
	go func() {
		text, err := lease.Handle().Recognize(callCtx, image)
		done <- callResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			err := inv.classify(res.err, key)
			if KindOf(err) == KindCorruption {
				lease.MarkCorrupt()
			}
			lease.Release()
			return "", err
		}
		lease.Release()
		return res.text, nil

	case <-callCtx.Done():
		// Cancel reaches the in-flight call through its context; an engine
		// that cannot be interrupted keeps the goroutine alive until it
		// returns, at which point the lease frees. The handle is marked
		// corrupt since its state after abandonment is unknown.
		lease.MarkCorrupt()
		go func() {
			<-done
			lease.Release()
		}()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e := NewError(KindTimeout, "engine.recognize", callCtx.Err())
		e.Lang = string(key)
		return "", e
	}
}

// classify maps engine sentinels onto the taxonomy.
func (inv *Invoker) classify(err error, key engine.Key) error {
	var kind Kind
	switch {
	case errors.Is(err, engine.ErrResourceExhausted):
		kind = KindResourceExhaustion
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	default:
		// Unknown mid-call failures count as engine corruption: retry on a
		// fresh instance.
		kind = KindCorruption
	}
	e := NewError(kind, "engine.recognize", err)
	e.Lang = string(key)
	return e
}
