// Package engine abstracts the external OCR engine behind exclusively owned
// handles. Handle startup is expensive (100-500ms for Tesseract), so handles
// are cached and leased through the Pool rather than created per call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Key identifies a language set, e.g. "eng" or "eng+fra". Handles are cached
// per key because the engine loads one trained-data set per language.
type Key string

// Languages splits the key into individual engine language codes.
func (k Key) Languages() []string {
	if k == "" {
		return nil
	}
	parts := strings.Split(string(k), "+")
	langs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			langs = append(langs, p)
		}
	}
	return langs
}

// Validate checks that the key names at least one language and has no
// empty segments ("eng++fra").
func (k Key) Validate() error {
	if len(k.Languages()) == 0 {
		return errors.New("engine: empty language key")
	}
	for _, p := range strings.Split(string(k), "+") {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("engine: malformed language key %q", string(k))
		}
	}
	return nil
}

// Sentinel errors used to classify engine failures. Callers map these onto
// the OCR error taxonomy.
var (
	// ErrCorrupted marks an engine internal failure mid-call. The owning
	// handle must be recreated before its next use.
	ErrCorrupted = errors.New("engine: internal failure")
	// ErrResourceExhausted marks engine resource pressure (memory, file
	// descriptors). Not transient from the caller's point of view.
	ErrResourceExhausted = errors.New("engine: resource exhausted")
)

// Handle is an exclusively owned engine instance. A handle is never safe for
// concurrent use; the Pool serializes access per key.
type Handle interface {
	// Recognize extracts text from encoded image bytes.
	Recognize(ctx context.Context, image []byte) (string, error)
	// Close releases the engine instance.
	Close() error
}

// Factory creates a handle for a language set. Creation failures surface as
// initialization errors and leave no cached state behind.
type Factory func(key Key) (Handle, error)
