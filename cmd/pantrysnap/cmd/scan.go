package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pantrysnap/pantrysnap/internal/pipeline"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [images...]",
	Short: "Scan recipe photos and parse ingredient lists",
	Long: `Scan one or more image files and parse the recognized text into
structured ingredient tokens.

Supported formats: JPEG, PNG, BMP, TIFF

Examples:
  pantrysnap scan photo.jpg
  pantrysnap scan *.png --format json
  pantrysnap scan photo.jpg --lang fra --output results.json`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

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

		results := make(map[string]*pipeline.ScanResult, len(args))
		for _, path := range args {
			res, err := scanImageFile(cmd.Context(), pl, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[path] = res
		}

		out, err := renderScanResults(results, format)
		if err != nil {
			return err
		}
		return writeOutput(cmd, out, outputFile)
	},
}

// scanImageFile reads and scans one image file.
func scanImageFile(ctx context.Context, pl *pipeline.Pipeline, path string) (*pipeline.ScanResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return pl.ProcessImage(ctx, data, imageFormatFromPath(path), "")
}

// imageFormatFromPath derives the submission format from a file extension.
func imageFormatFromPath(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	default:
		return ext
	}
}

// renderScanResults formats per-file scan results as JSON or plain text.
func renderScanResults(results map[string]*pipeline.ScanResult, format string) (string, error) {
	if format == outputFormatJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode results: %w", err)
		}
		return string(data) + "\n", nil
	}

	var b strings.Builder
	for path, res := range results {
		fmt.Fprintf(&b, "%s (%s, %v):\n", path, res.Lang, res.Duration)
		for _, tok := range res.Ingredients.Tokens {
			b.WriteString("  ")
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
	return b.String(), nil
}

// writeOutput writes rendered output to a file or the command's stdout.
func writeOutput(cmd *cobra.Command, out, outputFile string) error {
	if outputFile == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(out), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("format", "f", outputFormatJSON, "output format (json, text)")
	scanCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
}
