// Package preprocess applies a deterministic cleanup pass to submissions
// before they reach the engine: grayscale, mild contrast stretch and a
// resolution cap. Tesseract reads high-contrast gray text best, and capping
// resolution bounds per-call engine memory.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// Config controls the preprocessing pass.
type Config struct {
	// MaxDimension caps the longer image side in pixels; larger images are
	// downscaled proportionally. 0 disables the cap.
	MaxDimension int `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`
	// Contrast is the percentage passed to the contrast stretch, 0-100.
	Contrast float64 `mapstructure:"contrast" yaml:"contrast" json:"contrast"`
	// Grayscale converts to gray before contrast.
	Grayscale bool `mapstructure:"grayscale" yaml:"grayscale" json:"grayscale"`
}

// DefaultConfig returns the stock preprocessing pass.
func DefaultConfig() Config {
	return Config{
		MaxDimension: 3000,
		Contrast:     10,
		Grayscale:    true,
	}
}

// Validate checks the config for invalid values.
func (c Config) Validate() error {
	if c.MaxDimension < 0 {
		return errors.New("max dimension must not be negative")
	}
	if c.Contrast < 0 || c.Contrast > 100 {
		return errors.New("contrast must be in [0, 100]")
	}
	return nil
}

// Run decodes data, applies the configured pass and re-encodes as PNG for
// the engine. The input bytes are never modified.
func Run(cfg Config, data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	out := Apply(cfg, img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode preprocessed image: %w", err)
	}
	return buf.Bytes(), nil
}

// Apply runs the pass on a decoded image.
func Apply(cfg Config, img image.Image) image.Image {
	out := img
	if cfg.Grayscale {
		out = imaging.Grayscale(out)
	}
	if cfg.Contrast > 0 {
		out = imaging.AdjustContrast(out, cfg.Contrast)
	}
	if cfg.MaxDimension > 0 {
		b := out.Bounds()
		if b.Dx() > cfg.MaxDimension || b.Dy() > cfg.MaxDimension {
			if b.Dx() >= b.Dy() {
				out = imaging.Resize(out, cfg.MaxDimension, 0, imaging.Lanczos)
			} else {
				out = imaging.Resize(out, 0, cfg.MaxDimension, imaging.Lanczos)
			}
		}
	}
	return out
}
