package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/fieldmap/internal/source"
)

func newInspectCmd(_ *app) *cobra.Command {
	var (
		sheet     string
		headerRow int
		name      string
	)
	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Print the table definition inferred from a CSV or XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := source.Options{TableName: name, Sheet: sheet, Coerce: true}
			if headerRow >= 0 {
				opts.HeaderRowIndex = &headerRow
			}
			table, err := source.ParseFile(args[0], opts)
			if err != nil {
				return err
			}

			encoder := yaml.NewEncoder(os.Stdout)
			encoder.SetIndent(2)
			if err := encoder.Encode(table.Definition); err != nil {
				return fmt.Errorf("failed to encode table definition: %w", err)
			}
			if err := encoder.Close(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d rows, header row %d, %d coercion issues\n",
				len(table.Records), table.HeaderRowIndex, len(table.Issues))
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet to read from an XLSX input")
	cmd.Flags().IntVar(&headerRow, "header-row", -1, "zero-based header row index; first non-empty row when negative")
	cmd.Flags().StringVar(&name, "name", "", "table name (defaults to the file name)")
	return cmd
}
