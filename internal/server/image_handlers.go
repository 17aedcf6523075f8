package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// scanImageHandler processes image scan requests. It expects a multipart
// form with an "image" file and optional "lang" and "format" fields.
func (s *Server) scanImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = formatFromFilename(header.Filename)
	}
	lang := r.FormValue("lang")

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessImage(ctx, imageData, format, lang)
	if err != nil {
		scanRequestsTotal.WithLabelValues("image", "error").Inc()
		slog.Warn("Image scan failed", "error", err, "format", format)
		s.writeErrorResponse(w, fmt.Sprintf("Scan failed: %v", err), statusFromScanError(err))
		return
	}

	recordScan("image", len(res.Text), len(res.Ingredients.Tokens), time.Since(start).Seconds())

	payload := toScanPayload(res)
	s.writeJSON(w, http.StatusOK, ScanResponse{Success: true, Result: &payload})
}

// formatFromFilename derives the submission format from the upload's file
// extension.
func formatFromFilename(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	default:
		return ext
	}
}
