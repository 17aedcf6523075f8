package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// scanPDFHandler processes PDF scan requests. It expects a multipart form
// with a "pdf" file and optional "pages" and "lang" fields.
func (s *Server) scanPDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		s.writeErrorResponse(w, "No PDF file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	// pdfcpu works on files, so stage the upload in a temp dir.
	tmpDir, err := os.MkdirTemp("", "pantrysnap-pdf-*")
	if err != nil {
		s.writeErrorResponse(w, "Failed to stage upload", http.StatusInternalServerError)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	tmpPath := filepath.Join(tmpDir, "upload.pdf")
	out, err := os.Create(tmpPath)
	if err != nil {
		s.writeErrorResponse(w, "Failed to stage upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		s.writeErrorResponse(w, "Failed to stage upload", http.StatusInternalServerError)
		return
	}
	if err := out.Close(); err != nil {
		s.writeErrorResponse(w, "Failed to stage upload", http.StatusInternalServerError)
		return
	}

	pages := r.FormValue("pages")
	lang := r.FormValue("lang")

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	start := time.Now()
	results, err := s.pipeline.ProcessPDF(ctx, tmpPath, pages, lang)
	if err != nil {
		scanRequestsTotal.WithLabelValues("pdf", "error").Inc()
		slog.Warn("PDF scan failed", "error", err, "pages", pages)
		s.writeJSON(w, statusFromScanError(err), PDFScanResponse{
			Success: false,
			Error:   fmt.Sprintf("Scan failed: %v", err),
		})
		return
	}

	var textLen, tokenCount int
	payloads := make([]PagePayload, 0, len(results))
	for _, pr := range results {
		textLen += len(pr.Result.Text)
		tokenCount += len(pr.Result.Ingredients.Tokens)
		payloads = append(payloads, PagePayload{Page: pr.Page, Result: toScanPayload(pr.Result)})
	}
	recordScan("pdf", textLen, tokenCount, time.Since(start).Seconds())

	s.writeJSON(w, http.StatusOK, PDFScanResponse{Success: true, Pages: payloads})
}
