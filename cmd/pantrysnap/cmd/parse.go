package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pantrysnap/pantrysnap/internal/measure"
)

// parseCmd represents the parse command. It runs the measurement parser over
// text directly, without the OCR engine.
var parseCmd = &cobra.Command{
	Use:   "parse [text]",
	Short: "Parse ingredient text into structured tokens",
	Long: `Parse already-recognized ingredient text into structured tokens with
exact quantities and normalized units. Reads from stdin when no argument
is given.

Examples:
  pantrysnap parse "2 cups flour"
  pantrysnap parse "200 g de farine" --lang fra
  cat ingredients.txt | pantrysnap parse`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		var text string
		if len(args) == 1 {
			text = args[0]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			text = string(data)
		}
		if strings.TrimSpace(text) == "" {
			return errors.New("no text provided")
		}

		tables := measure.DefaultTables()
		if cfg.Pipeline.TablesPath != "" {
			var err error
			tables, err = measure.LoadTables(cfg.Pipeline.TablesPath)
			if err != nil {
				return fmt.Errorf("failed to load tables: %w", err)
			}
		}
		parser, err := measure.New(cfg.Pipeline.Parser, tables)
		if err != nil {
			return err
		}

		list := parser.Parse(text)

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case outputFormatJSON:
			type tokenOut struct {
				Quantity string `json:"quantity,omitempty"`
				Unit     string `json:"unit,omitempty"`
				Name     string `json:"name"`
				Raw      string `json:"raw"`
				Line     int    `json:"line"`
			}
			out := make([]tokenOut, 0, len(list.Tokens))
			for _, tok := range list.Tokens {
				out = append(out, tokenOut{
					Quantity: tok.QuantityString(),
					Unit:     tok.Unit,
					Name:     tok.Name,
					Raw:      tok.Raw,
					Line:     tok.Line,
				})
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode tokens: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		case outputFormatText:
			for _, tok := range list.Tokens {
				parts := make([]string, 0, 3)
				if q := tok.QuantityString(); q != "" {
					parts = append(parts, q)
				}
				if tok.Unit != "" {
					parts = append(parts, tok.Unit)
				}
				parts = append(parts, tok.Name)
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, " ")); err != nil {
					return err
				}
			}
			return nil
		default:
			return fmt.Errorf("unsupported output format %q (use json or text)", format)
		}
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringP("format", "f", outputFormatJSON, "output format (json, text)")
}
