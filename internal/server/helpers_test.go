package server

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pantrysnap/pantrysnap/internal/measure"
	"github.com/pantrysnap/pantrysnap/internal/ocr"
	"github.com/pantrysnap/pantrysnap/internal/pipeline"
)

// fakePipeline implements scanPipeline for handler tests without a real
// engine behind it.
type fakePipeline struct {
	text    string
	scanErr error
	pdfErr  error
	closed  bool
}

func (f *fakePipeline) parse(text string) measure.IngredientList {
	parser, err := measure.New(measure.DefaultConfig(), measure.DefaultTables())
	if err != nil {
		panic(err)
	}
	return parser.Parse(text)
}

func (f *fakePipeline) ProcessImage(ctx context.Context, data []byte, format, lang string) (*pipeline.ScanResult, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if lang == "" {
		lang = "eng+fra"
	}
	return &pipeline.ScanResult{
		Text:        f.text,
		Ingredients: f.parse(f.text),
		Lang:        lang,
		Duration:    5 * time.Millisecond,
	}, nil
}

func (f *fakePipeline) ProcessPDF(ctx context.Context, filename, pageRange, lang string) ([]pipeline.PageResult, error) {
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	res, err := f.ProcessImage(ctx, nil, "png", lang)
	if err != nil {
		return nil, err
	}
	return []pipeline.PageResult{{Page: 1, Result: res}}, nil
}

func (f *fakePipeline) Parse(rawText string) measure.IngredientList {
	return f.parse(rawText)
}

func (f *fakePipeline) Close() error {
	f.closed = true
	return nil
}

// newTestServer builds a server around a fake pipeline.
func newTestServer(fake *fakePipeline) *Server {
	return newServerWithPipeline(fake, Config{
		CORSOrigin:  "*",
		MaxUploadMB: 10,
		TimeoutSec:  5,
	})
}

// newTestMux returns a request mux with all routes registered.
func newTestMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// multipartBody builds a multipart request body with one file field plus
// extra form values.
func multipartBody(t *testing.T, field, filename string, content []byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	for k, v := range values {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

// doRequest runs one request through the mux and returns the recorder.
func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	newTestMux(s).ServeHTTP(rec, req)
	return rec
}

// taggedError builds a tagged scan error for status mapping tests.
func taggedError(kind ocr.Kind) error {
	return ocr.NewError(kind, "invoke", fmt.Errorf("boom"))
}

// rat is shorthand for big.NewRat in expectations.
func rat(a, b int64) *big.Rat { return big.NewRat(a, b) }
