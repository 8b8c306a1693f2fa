package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rpattn/fieldmap/internal/config"
	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/mapper"
	"github.com/rpattn/fieldmap/internal/source"
)

func newPreviewCmd(a *app) *cobra.Command {
	var (
		samples int
		sheet   string
		fields  []string
		lookups []string
	)
	cmd := &cobra.Command{
		Use:   "preview <definition> [input]",
		Short: "Evaluate a definition against sample values without mapping a whole file",
		Long: `Preview evaluates every target field once against field descriptors.
Descriptors are sampled from an input file or given with --field name=value.`,
		Example: `  fieldmap preview orders.yaml orders.csv --samples 3
  fieldmap preview orders.yaml --field Price=20 --field Region=EU`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := config.LoadDefinition(args[0])
			if err != nil {
				return err
			}

			var descriptors []domain.FieldDescriptor
			switch {
			case len(args) == 2:
				table, err := source.ParseFile(args[1], source.Options{TableName: def.Source.Name, Sheet: sheet})
				if err != nil {
					return err
				}
				descriptors = source.Descriptors(table, samples)
			case len(fields) > 0:
				if descriptors, err = parseFieldFlags(fields); err != nil {
					return err
				}
			default:
				return errors.New("an input file or at least one --field is required")
			}

			var extra []mapper.Option
			if len(lookups) > 0 {
				memory, err := loadLookupFiles(lookups)
				if err != nil {
					return err
				}
				extra = append(extra, mapper.WithLookupSource(memory))
			}
			executor := mapper.NewExecutor(a.executorOptions(extra...)...)
			plan, err := executor.Compile(def)
			if err != nil {
				return err
			}
			row, err := executor.Preview(cmd.Context(), plan, descriptors)
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, row)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&samples, "samples", 1, "distinct values sampled per column from the input file")
	flags.StringVar(&sheet, "sheet", "", "worksheet to read from an XLSX input")
	flags.StringArrayVar(&fields, "field", nil, "source field as name=value (repeatable)")
	flags.StringArrayVar(&lookups, "lookup", nil, "lookup table as name=path (repeatable)")
	return cmd
}

// parseFieldFlags groups repeated name=value pairs into descriptors,
// keeping the order in which names first appear.
func parseFieldFlags(pairs []string) ([]domain.FieldDescriptor, error) {
	var descriptors []domain.FieldDescriptor
	index := make(map[string]int)
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q: expected name=value", pair)
		}
		i, seen := index[name]
		if !seen {
			i = len(descriptors)
			index[name] = i
			descriptors = append(descriptors, domain.FieldDescriptor{FieldName: name, FieldType: domain.FieldTypeString})
		}
		descriptors[i].ValueSet = append(descriptors[i].ValueSet, value)
	}
	return descriptors, nil
}
