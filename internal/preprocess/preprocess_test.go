package preprocess

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrysnap/pantrysnap/internal/testutil"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.Error(t, Config{MaxDimension: -1}.Validate())
	require.Error(t, Config{Contrast: 101}.Validate())
	require.Error(t, Config{Contrast: -1}.Validate())
}

func TestRun_ProducesDecodablePNG(t *testing.T) {
	src := testutil.EncodeImage(t, testutil.GenerateTextImage(testutil.SmallSize, "2 cups flour"), "jpeg")

	out, err := Run(DefaultConfig(), src)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 320, img.Bounds().Dx())
}

func TestRun_RejectsGarbage(t *testing.T) {
	_, err := Run(DefaultConfig(), []byte("not an image"))
	require.Error(t, err)
}

func TestApply_CapsLongerSide(t *testing.T) {
	cfg := Config{MaxDimension: 100}

	wide := testutil.SolidImage(400, 200)
	out := Apply(cfg, wide)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())

	tall := testutil.SolidImage(200, 400)
	out = Apply(cfg, tall)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())

	small := testutil.SolidImage(80, 60)
	out = Apply(cfg, small)
	assert.Equal(t, 80, out.Bounds().Dx())
}

func TestApply_GrayscaleIdempotent(t *testing.T) {
	cfg := Config{Grayscale: true}
	img := testutil.GenerateTextImage(testutil.SmallSize, "6 eggs")

	once := Apply(cfg, img)
	twice := Apply(cfg, once)

	ob, tb := once.Bounds(), twice.Bounds()
	require.Equal(t, ob, tb)
	for y := ob.Min.Y; y < ob.Max.Y; y += 7 {
		for x := ob.Min.X; x < ob.Max.X; x += 7 {
			r1, g1, b1, _ := once.At(x, y).RGBA()
			r2, g2, b2, _ := twice.At(x, y).RGBA()
			require.Equal(t, [3]uint32{r1, g1, b1}, [3]uint32{r2, g2, b2})
		}
	}
}
