// Package pipeline composes the resilient OCR invoker with the measurement
// parser into the end-to-end scan path: image bytes in, structured
// ingredient list out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pantrysnap/pantrysnap/internal/engine"
	"github.com/pantrysnap/pantrysnap/internal/measure"
	"github.com/pantrysnap/pantrysnap/internal/ocr"
	"github.com/pantrysnap/pantrysnap/internal/pdf"
)

// Config holds configuration for the scan pipeline and its components.
type Config struct {
	Invoker ocr.Config     `mapstructure:"invoker" yaml:"invoker" json:"invoker"`
	Parser  measure.Config `mapstructure:"parser" yaml:"parser" json:"parser"`
	// TablesPath optionally points at a YAML unit/noun table file; empty
	// uses the built-in English+French tables.
	TablesPath string `mapstructure:"tables_path" yaml:"tables_path" json:"tables_path"`
	// DefaultLang is the engine language key used when a scan does not name
	// one.
	DefaultLang string `mapstructure:"default_lang" yaml:"default_lang" json:"default_lang"`
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Invoker:     ocr.DefaultConfig(),
		Parser:      measure.DefaultConfig(),
		DefaultLang: "eng+fra",
	}
}

// ScanResult is the outcome of one submission.
type ScanResult struct {
	// Text is the raw engine output.
	Text string `json:"text"`
	// Ingredients is the parsed, normalized ingredient list.
	Ingredients measure.IngredientList `json:"ingredients"`
	// Lang is the language key the scan used.
	Lang string `json:"lang"`
	// Duration covers the engine call only, not parsing.
	Duration time.Duration `json:"duration"`
}

// PageResult pairs a PDF page number with its merged scan result.
type PageResult struct {
	Page   int         `json:"page"`
	Result *ScanResult `json:"result"`
}

// Pipeline is the assembled scan path. Safe for concurrent use; engine
// access serializes per language key inside the invoker's pool.
type Pipeline struct {
	cfg     Config
	invoker *ocr.Invoker
	parser  *measure.Parser
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg     Config
	factory engine.Factory
}

// NewBuilder creates a new pipeline builder with defaults and the
// production engine factory.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig(), factory: engine.NewTesseractFactory()}
}

// WithConfig replaces the whole config.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithDefaultLanguage sets the fallback engine language key.
func (b *Builder) WithDefaultLanguage(lang string) *Builder {
	if lang != "" {
		b.cfg.DefaultLang = lang
	}
	return b
}

// WithTablesPath points the parser at an external unit/noun table file.
func (b *Builder) WithTablesPath(path string) *Builder {
	if path != "" {
		b.cfg.TablesPath = path
	}
	return b
}

// WithKeepUnmatched toggles the name-only fallback for unmatched lines.
func (b *Builder) WithKeepUnmatched(keep bool) *Builder {
	b.cfg.Parser.KeepUnmatched = keep
	return b
}

// WithCallTimeout overrides the hard engine call timeout.
func (b *Builder) WithCallTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.cfg.Invoker.CallTimeout = d
	}
	return b
}

// WithEngineFactory swaps the engine backing, mainly for tests.
func (b *Builder) WithEngineFactory(f engine.Factory) *Builder {
	if f != nil {
		b.factory = f
	}
	return b
}

// Build assembles the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.cfg.DefaultLang == "" {
		return nil, errors.New("pipeline: default language key required")
	}
	if err := engine.Key(b.cfg.DefaultLang).Validate(); err != nil {
		return nil, err
	}

	tables := measure.DefaultTables()
	if b.cfg.TablesPath != "" {
		var err error
		tables, err = measure.LoadTables(b.cfg.TablesPath)
		if err != nil {
			return nil, fmt.Errorf("load tables: %w", err)
		}
	}
	parser, err := measure.New(b.cfg.Parser, tables)
	if err != nil {
		return nil, err
	}

	invoker, err := ocr.New(b.cfg.Invoker, b.factory)
	if err != nil {
		return nil, err
	}

	return &Pipeline{cfg: b.cfg, invoker: invoker, parser: parser}, nil
}

// Invoker exposes the underlying invoker, e.g. for metrics wiring.
func (p *Pipeline) Invoker() *ocr.Invoker { return p.invoker }

// Close releases the engine pool.
func (p *Pipeline) Close() error { return p.invoker.Close() }

// Parse runs the measurement parser over raw text without touching the
// engine.
func (p *Pipeline) Parse(rawText string) measure.IngredientList {
	return p.parser.Parse(rawText)
}

// ProcessImage scans one image submission and parses the result.
func (p *Pipeline) ProcessImage(ctx context.Context, data []byte, format, lang string) (*ScanResult, error) {
	if lang == "" {
		lang = p.cfg.DefaultLang
	}
	res, err := p.invoker.Invoke(ctx, ocr.Submission{Image: data, Format: format, Lang: engine.Key(lang)})
	if err != nil {
		return nil, err
	}
	return &ScanResult{
		Text:        res.Text,
		Ingredients: p.parser.Parse(res.Text),
		Lang:        string(res.Lang),
		Duration:    res.Duration,
	}, nil
}

// ProcessPDF extracts page images from a PDF file and scans each page. Pages
// whose every image fails to scan are skipped; an error is returned only
// when no page produced a result.
func (p *Pipeline) ProcessPDF(ctx context.Context, filename, pageRange, lang string) ([]PageResult, error) {
	pages, err := pdf.ExtractPages(filename, pageRange)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page images in %s", filename)
	}

	var results []PageResult
	var lastErr error
	for _, page := range pages {
		merged, err := p.processPage(ctx, page, lang)
		if err != nil {
			lastErr = err
			continue
		}
		results = append(results, PageResult{Page: page.Number, Result: merged})
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no page of %s scanned: %w", filename, lastErr)
	}
	return results, nil
}

// processPage scans each image of a page and merges the text in order.
func (p *Pipeline) processPage(ctx context.Context, page pdf.Page, lang string) (*ScanResult, error) {
	var text string
	var total time.Duration
	scanned := 0
	var lastErr error
	for _, img := range page.Images {
		res, err := p.ProcessImage(ctx, img, "png", lang)
		if err != nil {
			lastErr = err
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += res.Text
		total += res.Duration
		scanned++
	}
	if scanned == 0 {
		return nil, fmt.Errorf("page %d: %w", page.Number, lastErr)
	}
	if lang == "" {
		lang = p.cfg.DefaultLang
	}
	return &ScanResult{
		Text:        text,
		Ingredients: p.parser.Parse(text),
		Lang:        lang,
		Duration:    total,
	}, nil
}
