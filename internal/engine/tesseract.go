package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// tesseractHandle wraps a long-lived gosseract client. Creating the client
// loads trained data for the key's languages, which is the expensive part
// the pool amortizes.
type tesseractHandle struct {
	client *gosseract.Client
}

// NewTesseractFactory returns a Factory producing gosseract-backed handles.
func NewTesseractFactory() Factory {
	return func(key Key) (Handle, error) {
		if err := key.Validate(); err != nil {
			return nil, err
		}
		client := gosseract.NewClient()
		if err := client.SetLanguage(key.Languages()...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set languages %q: %w", key, err)
		}
		return &tesseractHandle{client: client}, nil
	}
}

func (h *tesseractHandle) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := h.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := h.client.Text()
	if err != nil {
		return "", classifyTesseractError(err)
	}
	return text, nil
}

func (h *tesseractHandle) Close() error {
	return h.client.Close()
}

// classifyTesseractError maps gosseract failure messages onto the engine
// sentinels so the invoker can pick retry and recreation behavior.
func classifyTesseractError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "out of memory") || strings.Contains(msg, "too many"):
		return fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	default:
		// Tesseract does not distinguish internal faults in its API surface;
		// treat any mid-call failure as a corrupted instance.
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
}
