package pipeline

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrysnap/pantrysnap/internal/engine"
	"github.com/pantrysnap/pantrysnap/internal/ocr"
	"github.com/pantrysnap/pantrysnap/internal/testutil"
)

// textHandle always recognizes the same text.
type textHandle struct {
	text string
}

func (h *textHandle) Recognize(context.Context, []byte) (string, error) { return h.text, nil }
func (h *textHandle) Close() error                                      { return nil }

func textFactory(text string) engine.Factory {
	return func(engine.Key) (engine.Handle, error) {
		return &textHandle{text: text}, nil
	}
}

func buildTestPipeline(t *testing.T, b *Builder) *Pipeline {
	t.Helper()
	p, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestBuilder_Defaults(t *testing.T) {
	p := buildTestPipeline(t, NewBuilder().WithEngineFactory(textFactory("x")))
	assert.NotNil(t, p.Invoker())
}

func TestBuilder_RejectsBadLanguage(t *testing.T) {
	_, err := NewBuilder().WithEngineFactory(textFactory("x")).WithDefaultLanguage("+").Build()
	require.Error(t, err)
}

func TestBuilder_RejectsMissingTables(t *testing.T) {
	_, err := NewBuilder().
		WithEngineFactory(textFactory("x")).
		WithTablesPath("no/such/tables.yaml").
		Build()
	require.Error(t, err)
}

func TestPipeline_ProcessImageEndToEnd(t *testing.T) {
	p := buildTestPipeline(t, NewBuilder().
		WithEngineFactory(textFactory("2 cups flour\n6 eggs\n¾ tsp salt")))

	img := testutil.EncodeImage(t, testutil.GenerateTextImage(testutil.SmallSize, "ingredients"), "png")
	res, err := p.ProcessImage(context.Background(), img, "png", "eng")
	require.NoError(t, err)

	assert.Equal(t, "eng", res.Lang)
	tokens := res.Ingredients.Tokens
	require.Len(t, tokens, 3)

	assert.Equal(t, 0, big.NewRat(2, 1).Cmp(tokens[0].Quantity))
	assert.Equal(t, "cup", tokens[0].Unit)
	assert.Equal(t, "flour", tokens[0].Name)

	assert.Equal(t, 0, big.NewRat(6, 1).Cmp(tokens[1].Quantity))
	assert.Equal(t, "", tokens[1].Unit)
	assert.Equal(t, "eggs", tokens[1].Name)

	assert.Equal(t, 0, big.NewRat(3, 4).Cmp(tokens[2].Quantity))
	assert.Equal(t, "tsp", tokens[2].Unit)
	assert.Equal(t, "salt", tokens[2].Name)
}

func TestPipeline_DefaultLanguageApplied(t *testing.T) {
	p := buildTestPipeline(t, NewBuilder().
		WithEngineFactory(textFactory("6 eggs")).
		WithDefaultLanguage("eng+fra"))

	img := testutil.EncodeImage(t, testutil.SolidImage(16, 16), "png")
	res, err := p.ProcessImage(context.Background(), img, "png", "")
	require.NoError(t, err)
	assert.Equal(t, "eng+fra", res.Lang)
}

func TestPipeline_InvokeErrorPropagatesTagged(t *testing.T) {
	p := buildTestPipeline(t, NewBuilder().WithEngineFactory(textFactory("x")))

	_, err := p.ProcessImage(context.Background(), []byte("junk"), "png", "eng")
	require.Error(t, err)
	assert.Equal(t, ocr.KindValidation, ocr.KindOf(err))
}

func TestPipeline_KeepUnmatchedToggle(t *testing.T) {
	text := "fresh basil leaves\n6 eggs"
	img := testutil.EncodeImage(t, testutil.SolidImage(16, 16), "png")

	keep := buildTestPipeline(t, NewBuilder().WithEngineFactory(textFactory(text)))
	res, err := keep.ProcessImage(context.Background(), img, "png", "eng")
	require.NoError(t, err)
	assert.Len(t, res.Ingredients.Tokens, 2)

	drop := buildTestPipeline(t, NewBuilder().
		WithEngineFactory(textFactory(text)).
		WithKeepUnmatched(false))
	res, err = drop.ProcessImage(context.Background(), img, "png", "eng")
	require.NoError(t, err)
	require.Len(t, res.Ingredients.Tokens, 1)
	assert.Equal(t, "eggs", res.Ingredients.Tokens[0].Name)
}

func TestPipeline_ParseWithoutEngine(t *testing.T) {
	p := buildTestPipeline(t, NewBuilder().WithEngineFactory(textFactory("unused")))
	list := p.Parse("½ cup sugar")
	require.Len(t, list.Tokens, 1)
	assert.Equal(t, "sugar", list.Tokens[0].Name)
}

func TestPipeline_ProcessPDFMissingFile(t *testing.T) {
	p := buildTestPipeline(t, NewBuilder().WithEngineFactory(textFactory("x")))
	_, err := p.ProcessPDF(context.Background(), "no/such.pdf", "", "eng")
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
