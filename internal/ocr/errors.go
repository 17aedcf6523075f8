package ocr

import (
	"errors"
	"fmt"
)

// Kind classifies an OCR subsystem failure. Callers decide user-facing
// messaging from the kind; the core only tags and propagates.
type Kind string

const (
	// KindValidation covers bad format, oversized payloads and corrupt
	// headers. Never retried.
	KindValidation Kind = "validation"
	// KindInitialization covers engine handle creation failures. Retried a
	// bounded number of times, then surfaced.
	KindInitialization Kind = "initialization"
	// KindTimeout covers engine calls cancelled by the wall-clock deadline.
	KindTimeout Kind = "timeout"
	// KindCorruption covers engine internal failures mid-call. The pooled
	// handle is recreated lazily on next use.
	KindCorruption Kind = "corruption"
	// KindResourceExhaustion covers engine resource pressure. Surfaced
	// without retry but counted as a breaker failure.
	KindResourceExhaustion Kind = "resource_exhaustion"
	// KindCircuitOpen is the breaker's fail-fast response. Not counted as a
	// new failure and never retried.
	KindCircuitOpen Kind = "circuit_open"
	// KindRetryExhausted wraps the last transient error once attempts run out.
	KindRetryExhausted Kind = "retry_exhausted"
)

// Error is the single tagged value every OCR subsystem failure propagates as.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "validate", "engine.recognize"
	Lang    string // language-set key, when known
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("ocr: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("ocr: %s: %s: %v", e.Op, e.Kind, e.Wrapped)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// NewError constructs a tagged error for the given kind and operation.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Wrapped: err}
}

// KindOf extracts the failure kind from err, or "" if err carries no tag.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transient failure worth another
// attempt. Validation and resource exhaustion are permanent per policy; a
// breaker rejection must not burn retry attempts.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindInitialization, KindCorruption:
		return true
	default:
		return false
	}
}
