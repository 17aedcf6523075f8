package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrysnap/pantrysnap/internal/engine"
	"github.com/pantrysnap/pantrysnap/internal/pipeline"
	"github.com/pantrysnap/pantrysnap/internal/testutil"
)

// fixedHandle recognizes the same text for every submission.
type fixedHandle struct{ text string }

func (h *fixedHandle) Recognize(context.Context, []byte) (string, error) { return h.text, nil }
func (h *fixedHandle) Close() error                                      { return nil }

func newTestPipeline(t *testing.T, text string) *pipeline.Pipeline {
	t.Helper()
	pl, err := pipeline.NewBuilder().
		WithEngineFactory(func(engine.Key) (engine.Handle, error) {
			return &fixedHandle{text: text}, nil
		}).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pl.Close() })
	return pl
}

// writeTestImages creates n PNG files in a fresh temp dir.
func writeTestImages(t *testing.T, n int) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	img := testutil.EncodeImage(t, testutil.SolidImage(32, 32), "png")
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, "recipe"+string(rune('a'+i))+".png")
		require.NoError(t, os.WriteFile(path, img, 0o600))
		paths = append(paths, path)
	}
	return dir, paths
}

func TestProcess_Directory(t *testing.T) {
	pl := newTestPipeline(t, "2 cups flour")
	dir, paths := writeTestImages(t, 3)

	res, err := Process(context.Background(), pl, []string{dir}, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Files, len(paths))

	for _, fr := range res.Files {
		require.NoError(t, fr.Err)
		require.NotNil(t, fr.Result)
		require.Len(t, fr.Result.Ingredients.Tokens, 1)
		assert.Equal(t, "flour", fr.Result.Ingredients.Tokens[0].Name)
	}
	assert.Empty(t, res.Failed())
	assert.LessOrEqual(t, res.WorkerCount, len(paths))
}

func TestProcess_ExplicitFiles(t *testing.T) {
	pl := newTestPipeline(t, "6 eggs")
	_, paths := writeTestImages(t, 2)

	res, err := Process(context.Background(), pl, paths, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, paths[0], res.Files[0].Path)
	assert.Equal(t, paths[1], res.Files[1].Path)
}

func TestProcess_NoFiles(t *testing.T) {
	pl := newTestPipeline(t, "x")
	dir := t.TempDir()

	_, err := Process(context.Background(), pl, []string{dir}, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image files found")
}

func TestProcess_MissingPath(t *testing.T) {
	pl := newTestPipeline(t, "x")
	_, err := Process(context.Background(), pl, []string{"/nonexistent/file.png"}, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestProcess_ContinueOnError(t *testing.T) {
	pl := newTestPipeline(t, "6 eggs")
	dir, paths := writeTestImages(t, 2)

	// A file with an image extension but junk content fails validation.
	bad := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o600))

	cfg := DefaultConfig()
	cfg.ContinueOnError = true
	res, err := Process(context.Background(), pl, []string{dir}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Files, len(paths)+1)

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, bad, failed[0].Path)
}

func TestProcess_AbortOnError(t *testing.T) {
	pl := newTestPipeline(t, "6 eggs")
	dir, _ := writeTestImages(t, 1)
	bad := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o600))

	_, err := Process(context.Background(), pl, []string{dir}, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.png")
}

func TestProcess_CancelledContext(t *testing.T) {
	pl := newTestPipeline(t, "x")
	dir, _ := writeTestImages(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Process(ctx, pl, []string{dir}, DefaultConfig())
	require.ErrorIs(t, err, context.Canceled)
}

func TestShouldIncludeFile(t *testing.T) {
	assert.True(t, shouldIncludeFile("/x/a.png", nil, nil))
	assert.True(t, shouldIncludeFile("/x/a.png", []string{"*.png"}, nil))
	assert.False(t, shouldIncludeFile("/x/a.png", []string{"*.jpg"}, nil))
	assert.False(t, shouldIncludeFile("/x/a.png", nil, []string{"a.*"}))
	assert.False(t, shouldIncludeFile("/x/a.png", []string{"*.png"}, []string{"*.png"}))
}

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, isSupportedImage("a.PNG"))
	assert.True(t, isSupportedImage("a.jpeg"))
	assert.False(t, isSupportedImage("a.pdf"))
	assert.False(t, isSupportedImage("a"))
}
