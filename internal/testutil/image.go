// Package testutil provides shared test fixtures: synthetic images encoded
// in each supported submission format.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/tiff"
)

// ImageSize represents common test image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
)

// GenerateTextImage creates a white image with black text lines drawn with
// the basic 7x13 font, one line per entry.
func GenerateTextImage(size ImageSize, lines ...string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{color.Black},
		Face: basicfont.Face7x13,
	}
	y := 20
	for _, line := range lines {
		drawer.Dot = fixed.P(10, y)
		drawer.DrawString(line)
		y += 16
	}
	return img
}

// EncodeImage encodes img in the given format ("png", "jpeg", "bmp", "tiff").
func EncodeImage(t *testing.T, img image.Image, format string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "bmp":
		err = bmp.Encode(&buf, img)
	case "tiff", "tif":
		err = tiff.Encode(&buf, img, nil)
	default:
		t.Fatalf("unsupported test image format %q", format)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

// SolidImage returns a flat gray image of the given dimensions, useful when
// only header metadata matters.
func SolidImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Gray{Y: 180}}, image.Point{}, draw.Src)
	return img
}
