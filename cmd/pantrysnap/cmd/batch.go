package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pantrysnap/pantrysnap/internal/batch"
	"github.com/pantrysnap/pantrysnap/internal/pipeline"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch [paths...]",
	Short: "Scan many images or directories concurrently",
	Long: `Scan image files and directories with a worker pool, sharing one
pipeline across all scans.

Examples:
  pantrysnap batch ./photos
  pantrysnap batch ./photos --recursive --workers 8
  pantrysnap batch ./photos --include "*.jpg" --continue-on-error`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input paths provided")
		}

		cfg := GetConfig()

		workers, _ := cmd.Flags().GetInt("workers")
		recursive, _ := cmd.Flags().GetBool("recursive")
		continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
		include, _ := cmd.Flags().GetStringSlice("include")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")
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

		batchCfg := batch.Config{
			Workers:         workers,
			ContinueOnError: continueOnError,
			Recursive:       recursive,
			IncludePatterns: include,
			ExcludePatterns: exclude,
		}
		res, err := batch.Process(cmd.Context(), pl, args, batchCfg)
		if err != nil {
			return err
		}

		out, err := renderBatchResult(res, format)
		if err != nil {
			return err
		}
		return writeOutput(cmd, out, outputFile)
	},
}

// renderBatchResult formats a batch run as JSON or plain text.
func renderBatchResult(res *batch.Result, format string) (string, error) {
	if format == outputFormatJSON {
		type fileOut struct {
			Path   string               `json:"path"`
			Result *pipeline.ScanResult `json:"result,omitempty"`
			Error  string               `json:"error,omitempty"`
		}
		out := struct {
			Files      []fileOut `json:"files"`
			DurationMs int64     `json:"duration_ms"`
			Workers    int       `json:"workers"`
		}{
			DurationMs: res.Duration.Milliseconds(),
			Workers:    res.WorkerCount,
		}
		for _, fr := range res.Files {
			fo := fileOut{Path: fr.Path, Result: fr.Result}
			if fr.Err != nil {
				fo.Error = fr.Err.Error()
			}
			out.Files = append(out.Files, fo)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode results: %w", err)
		}
		return string(data) + "\n", nil
	}

	var b strings.Builder
	for _, fr := range res.Files {
		if fr.Err != nil {
			fmt.Fprintf(&b, "%s: error: %v\n", fr.Path, fr.Err)
			continue
		}
		fmt.Fprintf(&b, "%s: %d ingredients\n", fr.Path, len(fr.Result.Ingredients.Tokens))
	}
	fmt.Fprintf(&b, "%d files in %v with %d workers\n", len(res.Files), res.Duration, res.WorkerCount)
	return b.String(), nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntP("workers", "w", 4, "number of concurrent scan workers")
	batchCmd.Flags().BoolP("recursive", "r", false, "recurse into subdirectories")
	batchCmd.Flags().Bool("continue-on-error", false, "record per-file failures instead of aborting")
	batchCmd.Flags().StringSlice("include", nil, "glob patterns of file names to include")
	batchCmd.Flags().StringSlice("exclude", nil, "glob patterns of file names to exclude")
	batchCmd.Flags().StringP("format", "f", outputFormatJSON, "output format (json, text)")
	batchCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
}
