// Package pdf extracts page images from PDF submissions so scanned recipe
// documents can run through the same OCR path as single images.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Page holds the images extracted from one PDF page, re-encoded as PNG for
// the OCR submission path.
type Page struct {
	Number int
	Images [][]byte
}

// ExtractPages pulls every embedded image out of the PDF, grouped and
// ordered by page. pageRange accepts "", "3", "1-5" or "1,3,5".
func ExtractPages(filename string, pageRange string) ([]Page, error) {
	pages, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "pantrysnap-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selected []string
	for _, p := range pages {
		selected = append(selected, strconv.Itoa(p))
	}
	if err := api.ExtractImagesFile(filename, tempDir, selected, nil); err != nil {
		return nil, fmt.Errorf("extract images from %s: %w", filename, err)
	}

	return collectPages(tempDir)
}

// collectPages walks the extraction directory and groups images by page.
// pdfcpu names files page_<num>_image_<idx>.<ext>.
func collectPages(dir string) ([]Page, error) {
	byPage := make(map[int][][]byte)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		pageNum, err := pageFromFilename(info.Name())
		if err != nil {
			return nil // not a page image
		}
		data, err := reencodePNG(path)
		if err != nil {
			return nil // unreadable image, skip
		}
		byPage[pageNum] = append(byPage[pageNum], data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	nums := make([]int, 0, len(byPage))
	for n := range byPage {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	out := make([]Page, 0, len(nums))
	for _, n := range nums {
		out = append(out, Page{Number: n, Images: byPage[n]})
	}
	return out, nil
}

func reencodePNG(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // G304: reading files pdfcpu just wrote
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pageFromFilename(filename string) (int, error) {
	if !strings.HasPrefix(filename, "page_") {
		return 0, errors.New("not a page file")
	}
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return 0, errors.New("invalid filename format")
	}
	return strconv.Atoi(parts[1])
}

// parsePageRange parses "1-5" / "1,3,5" / "3" into page numbers. Empty
// input selects all pages.
func parsePageRange(pageRange string) ([]int, error) {
	if pageRange == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		part = strings.TrimSpace(part)
		tokenPages, err := parseRangeToken(part)
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

func parseRangeToken(part string) ([]int, error) {
	start, end, isRange := strings.Cut(part, "-")
	if !isRange {
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		return []int{n}, nil
	}
	from, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil || from < 1 {
		return nil, fmt.Errorf("invalid start page %q", start)
	}
	to, err := strconv.Atoi(strings.TrimSpace(end))
	if err != nil || to < from {
		return nil, fmt.Errorf("invalid end page %q", end)
	}
	pages := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		pages = append(pages, p)
	}
	return pages, nil
}
