package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pantrysnap/pantrysnap/internal/pipeline"
)

// pdfCmd represents the pdf command.
var pdfCmd = &cobra.Command{
	Use:   "pdf [files...]",
	Short: "Scan cookbook PDF pages and parse ingredient lists",
	Long: `Extract page images from PDF files, scan each page and parse the
recognized text into structured ingredient tokens.

Examples:
  pantrysnap pdf cookbook.pdf
  pantrysnap pdf cookbook.pdf --pages 3-7
  pantrysnap pdf scans.pdf --pages 1,4,9 --format text`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		pages, _ := cmd.Flags().GetString("pages")
		format, _ := cmd.Flags().GetString("format")
		outputFile, _ := cmd.Flags().GetString("output")
		if format != outputFormatJSON && format != outputFormatText {
			return fmt.Errorf("unsupported output format %q (use json or text)", format)
		}

		pl, err := pipeline.NewBuilder().WithConfig(cfg.Pipeline).Build()
		if err != nil {
			return fmt.Errorf("failed to build pipeline: %w", err)
		}
		defer func() { _ = pl.Close() }()

		results := make(map[string][]pipeline.PageResult, len(args))
		for _, path := range args {
			pageResults, err := pl.ProcessPDF(cmd.Context(), path, pages, "")
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[path] = pageResults
		}

		out, err := renderPDFResults(results, format)
		if err != nil {
			return err
		}
		return writeOutput(cmd, out, outputFile)
	},
}

// renderPDFResults formats per-file page results as JSON or plain text.
func renderPDFResults(results map[string][]pipeline.PageResult, format string) (string, error) {
	if format == outputFormatJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode results: %w", err)
		}
		return string(data) + "\n", nil
	}

	var b strings.Builder
	for path, pageResults := range results {
		fmt.Fprintf(&b, "%s:\n", path)
		for _, pr := range pageResults {
			fmt.Fprintf(&b, "  page %d:\n", pr.Page)
			for _, tok := range pr.Result.Ingredients.Tokens {
				b.WriteString("    ")
				if q := tok.QuantityString(); q != "" {
					b.WriteString(q)
					b.WriteString(" ")
				}
				if tok.Unit != "" {
					b.WriteString(tok.Unit)
					b.WriteString(" ")
				}
				b.WriteString(tok.Name)
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}

func init() {
	rootCmd.AddCommand(pdfCmd)

	pdfCmd.Flags().StringP("pages", "p", "", "page range, e.g. 3-7 or 1,4,9 (default all pages)")
	pdfCmd.Flags().StringP("format", "f", outputFormatJSON, "output format (json, text)")
	pdfCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
}
