package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pantrysnap/pantrysnap/internal/ocr"
	"github.com/pantrysnap/pantrysnap/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// scanTextRequest is the body of a parse-only request.
type scanTextRequest struct {
	Text string `json:"text"`
}

// scanTextHandler parses already-recognized text into ingredient tokens
// without touching the engine.
func (s *Server) scanTextHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.writeErrorResponse(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req scanTextRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeErrorResponse(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		s.writeErrorResponse(w, "No text provided", http.StatusBadRequest)
		return
	}

	list := s.pipeline.Parse(req.Text)
	scanRequestsTotal.WithLabelValues("text", "success").Inc()
	ingredientsParsed.WithLabelValues("text").Observe(float64(len(list.Tokens)))

	payload := ScanPayload{Text: req.Text, Ingredients: make([]IngredientPayload, 0, len(list.Tokens))}
	for _, tok := range list.Tokens {
		ip := IngredientPayload{Unit: tok.Unit, Name: tok.Name, Raw: tok.Raw, Line: tok.Line}
		if tok.Quantity != nil {
			ip.Quantity = tok.QuantityString()
			if v, ok := tok.QuantityFloat(); ok {
				ip.Value = v
			}
		}
		payload.Ingredients = append(payload.Ingredients, ip)
	}

	s.writeJSON(w, http.StatusOK, ScanResponse{Success: true, Result: &payload})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error envelope.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, ScanResponse{Success: false, Error: message})
}

// statusFromScanError maps tagged scan errors onto HTTP status codes.
func statusFromScanError(err error) int {
	switch ocr.KindOf(err) {
	case ocr.KindValidation:
		return http.StatusBadRequest
	case ocr.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case ocr.KindResourceExhaustion:
		return http.StatusServiceUnavailable
	case ocr.KindTimeout:
		return http.StatusGatewayTimeout
	case ocr.KindRetryExhausted, ocr.KindCorruption:
		return http.StatusBadGateway
	case ocr.KindInitialization:
		return http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
