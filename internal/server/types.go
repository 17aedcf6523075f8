// Package server exposes the scan pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pantrysnap/pantrysnap/internal/breaker"
	"github.com/pantrysnap/pantrysnap/internal/measure"
	"github.com/pantrysnap/pantrysnap/internal/pipeline"
)

// scanPipeline defines the methods the server needs from a pipeline.
type scanPipeline interface {
	ProcessImage(ctx context.Context, data []byte, format, lang string) (*pipeline.ScanResult, error)
	ProcessPDF(ctx context.Context, filename, pageRange, lang string) ([]pipeline.PageResult, error)
	Parse(rawText string) measure.IngredientList
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    scanPipeline
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config

	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *RateLimiter
}

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// IngredientPayload is the wire form of one parsed ingredient token.
type IngredientPayload struct {
	Quantity string  `json:"quantity,omitempty"`
	Value    float64 `json:"value,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Name     string  `json:"name"`
	Raw      string  `json:"raw"`
	Line     int     `json:"line"`
}

// ScanPayload is the wire form of one scan result.
type ScanPayload struct {
	Text        string              `json:"text"`
	Ingredients []IngredientPayload `json:"ingredients"`
	Lang        string              `json:"lang"`
	DurationMs  int64               `json:"duration_ms"`
}

// PagePayload pairs a PDF page number with its scan payload.
type PagePayload struct {
	Page   int         `json:"page"`
	Result ScanPayload `json:"result"`
}

// ScanResponse is the envelope for image and text scan endpoints.
type ScanResponse struct {
	Success bool         `json:"success"`
	Result  *ScanPayload `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// PDFScanResponse is the envelope for the PDF scan endpoint.
type PDFScanResponse struct {
	Success bool          `json:"success"`
	Pages   []PagePayload `json:"pages,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// NewServer creates a new scan server, building the pipeline from the
// provided config.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().WithConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}

	s := newServerWithPipeline(pl, config)
	pl.Invoker().Breaker().OnTransition(func(from, to breaker.State) {
		breakerTransitions.WithLabelValues(from.String(), to.String()).Inc()
	})
	return s, nil
}

// newServerWithPipeline wires a server around an existing pipeline, used by
// tests to inject fakes.
func newServerWithPipeline(pl scanPipeline, config Config) *Server {
	return &Server{
		pipeline:    pl,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		rateLimiter: config.RateLimiter,
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/scan/image", s.corsMiddleware(s.rateLimitMiddleware(s.scanImageHandler)))
	mux.HandleFunc("/scan/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.scanPDFHandler)))
	mux.HandleFunc("/scan/text", s.corsMiddleware(s.scanTextHandler))
	mux.HandleFunc("/ws/scan", s.scanWebSocketHandler)
}

// toScanPayload converts a pipeline result into its wire form.
func toScanPayload(res *pipeline.ScanResult) ScanPayload {
	payload := ScanPayload{
		Text:        res.Text,
		Ingredients: make([]IngredientPayload, 0, len(res.Ingredients.Tokens)),
		Lang:        res.Lang,
		DurationMs:  res.Duration.Milliseconds(),
	}
	for _, tok := range res.Ingredients.Tokens {
		ip := IngredientPayload{
			Unit: tok.Unit,
			Name: tok.Name,
			Raw:  tok.Raw,
			Line: tok.Line,
		}
		if tok.Quantity != nil {
			ip.Quantity = tok.QuantityString()
			if v, ok := tok.QuantityFloat(); ok {
				ip.Value = v
			}
		}
		payload.Ingredients = append(payload.Ingredients, ip)
	}
	return payload
}
