// Package validate pre-checks image submissions before any expensive engine
// work: magic-header agreement with the declared format, per-format size
// ceilings and an estimate of peak decode memory. Checks are pure.
package validate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	// Registered so DecodeConfig can read dimensions for every supported format.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Format is a supported submission image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// Sentinel errors for the three rejection classes.
var (
	ErrFormatMismatch = errors.New("validate: header does not match declared format")
	ErrSizeExceeded   = errors.New("validate: image exceeds size ceiling for its format")
	ErrMemoryExceeded = errors.New("validate: estimated decode memory exceeds ceiling")
	ErrCorruptHeader  = errors.New("validate: unreadable image header")
)

const mb = 1 << 20

// bytesPerPixel is the worst-case in-memory cost per pixel after decoding
// (RGBA).
const bytesPerPixel = 4

// Config holds per-format byte ceilings and the decode-memory ceiling.
type Config struct {
	MaxBytes          map[Format]int64 `mapstructure:"max_bytes" yaml:"max_bytes" json:"max_bytes"`
	MaxDecodeMemBytes int64            `mapstructure:"max_decode_mem_bytes" yaml:"max_decode_mem_bytes" json:"max_decode_mem_bytes"`
}

// DefaultConfig returns the stock ceilings.
func DefaultConfig() Config {
	return Config{
		MaxBytes: map[Format]int64{
			FormatPNG:  15 * mb,
			FormatJPEG: 10 * mb,
			FormatBMP:  5 * mb,
			FormatTIFF: 20 * mb,
		},
		MaxDecodeMemBytes: 256 * mb,
	}
}

// Validate checks the config for invalid values.
func (c Config) Validate() error {
	for f, n := range c.MaxBytes {
		if n <= 0 {
			return fmt.Errorf("size ceiling for %s must be positive", f)
		}
	}
	if c.MaxDecodeMemBytes <= 0 {
		return errors.New("decode memory ceiling must be positive")
	}
	return nil
}

// ParseFormat normalizes a declared format string ("JPG", "jpeg", ...).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrFormatMismatch, s)
	}
}

// magic headers per format. TIFF has two byte orders.
var magics = map[Format][][]byte{
	FormatPNG:  {{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}},
	FormatJPEG: {{0xFF, 0xD8, 0xFF}},
	FormatBMP:  {{'B', 'M'}},
	FormatTIFF: {{'I', 'I', 0x2A, 0x00}, {'M', 'M', 0x00, 0x2A}},
}

// Validator applies the configured ceilings to submissions.
type Validator struct {
	cfg Config
}

// New creates a validator after checking the config.
func New(cfg Config) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Validator{cfg: cfg}, nil
}

// Check validates data against the declared format. The order is fixed:
// header agreement, then byte size, then estimated decode memory.
func (v *Validator) Check(data []byte, declared string) error {
	format, err := ParseFormat(declared)
	if err != nil {
		return err
	}

	if !matchesMagic(data, format) {
		return fmt.Errorf("%w: declared %s", ErrFormatMismatch, format)
	}

	ceiling, ok := v.cfg.MaxBytes[format]
	if !ok {
		ceiling = DefaultConfig().MaxBytes[format]
	}
	if int64(len(data)) > ceiling {
		return fmt.Errorf("%w: %d bytes, %s ceiling %d", ErrSizeExceeded, len(data), format, ceiling)
	}

	need, err := estimateDecodeMemory(data)
	if err != nil {
		return err
	}
	if need > v.cfg.MaxDecodeMemBytes {
		return fmt.Errorf("%w: need %d bytes, ceiling %d", ErrMemoryExceeded, need, v.cfg.MaxDecodeMemBytes)
	}
	return nil
}

func matchesMagic(data []byte, format Format) bool {
	for _, m := range magics[format] {
		if len(data) >= len(m) && bytes.Equal(data[:len(m)], m) {
			return true
		}
	}
	return false
}

// estimateDecodeMemory reads the declared dimensions from the header and
// returns the worst-case decoded size in bytes.
func estimateDecodeMemory(data []byte) (int64, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, fmt.Errorf("%w: non-positive dimensions %dx%d", ErrCorruptHeader, cfg.Width, cfg.Height)
	}
	return int64(cfg.Width) * int64(cfg.Height) * bytesPerPixel, nil
}
