// Package batch scans many image files concurrently through one shared
// pipeline.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pantrysnap/pantrysnap/internal/pipeline"
)

// Config holds batch processing settings.
type Config struct {
	// Workers bounds concurrent scans. Engine access still serializes per
	// language key inside the pool, but decode and parsing overlap.
	Workers int

	// ContinueOnError records per-file failures instead of aborting the run.
	ContinueOnError bool

	// Lang overrides the pipeline's default language key when non-empty.
	Lang string

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
}

// DefaultConfig returns batch defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		ContinueOnError: false,
	}
}

// FileResult pairs one input path with its scan outcome.
type FileResult struct {
	Path   string
	Result *pipeline.ScanResult
	Err    error
}

// Result holds the outcome of one batch run.
type Result struct {
	Files       []FileResult
	Duration    time.Duration
	WorkerCount int
}

// Failed returns the results of files that could not be scanned.
func (r *Result) Failed() []FileResult {
	var failed []FileResult
	for _, fr := range r.Files {
		if fr.Err != nil {
			failed = append(failed, fr)
		}
	}
	return failed
}

// Process discovers image files under the given paths and scans them through
// the pipeline with a bounded worker pool. Results keep the discovery order.
func Process(ctx context.Context, pl *pipeline.Pipeline, paths []string, cfg Config) (*Result, error) {
	files, err := discoverImageFiles(paths, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	start := time.Now()
	results := make([]FileResult, len(files))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = scanFile(ctx, pl, files[i], cfg.Lang)
			}
		}()
	}

	for i := range files {
		select {
		case <-ctx.Done():
			// Unscanned files report the cancellation.
			for j := i; j < len(files); j++ {
				results[j] = FileResult{Path: files[j], Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if !cfg.ContinueOnError {
		for _, fr := range results {
			if fr.Err != nil {
				return nil, fmt.Errorf("%s: %w", fr.Path, fr.Err)
			}
		}
	}

	return &Result{
		Files:       results,
		Duration:    time.Since(start),
		WorkerCount: workers,
	}, nil
}

// scanFile reads and scans one file.
func scanFile(ctx context.Context, pl *pipeline.Pipeline, path, lang string) FileResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: path, Err: err}
	}
	res, err := pl.ProcessImage(ctx, data, formatFromPath(path), lang)
	return FileResult{Path: path, Result: res, Err: err}
}
