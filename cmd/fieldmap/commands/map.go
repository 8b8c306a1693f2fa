package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rpattn/fieldmap/internal/config"
	"github.com/rpattn/fieldmap/internal/db"
	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/export"
	"github.com/rpattn/fieldmap/internal/mapper"
	"github.com/rpattn/fieldmap/internal/repository"
	"github.com/rpattn/fieldmap/internal/source"
)

// ErrRowsFailed is returned by map --fail-on-errors when any row failed.
var ErrRowsFailed = errors.New("one or more rows failed to map")

type mapFlags struct {
	output        string
	format        string
	limit         int
	offset        int
	sheet         string
	coerce        bool
	headerRow     int
	lookups       []string
	dbLookups     bool
	recordRun     bool
	table         string
	includeErrors bool
	failOnErrors  bool
}

func newMapCmd(a *app) *cobra.Command {
	f := &mapFlags{}
	cmd := &cobra.Command{
		Use:   "map <definition> [input]",
		Short: "Map a CSV or XLSX file (or a database table) through a mapping definition",
		Long: `Map source rows onto the target table of a mapping definition.

The output format follows the --output extension (.csv, .xlsx or .json).
Without --output the result is written to stdout as JSON.`,
		Example: `  fieldmap map orders.yaml orders.csv -o mapped.xlsx
  fieldmap map orders.yaml orders.xlsx --sheet Q3 --lookup countries=countries.csv
  fieldmap map orders.yaml --table staging.orders --db-lookups --record-run`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMap(cmd.Context(), f, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.output, "output", "o", "", "output file (.csv, .xlsx or .json); stdout when empty")
	flags.StringVar(&f.format, "format", "json", "stdout format: json, csv")
	flags.IntVar(&f.limit, "limit", 0, "maximum number of rows to map (0 maps every row)")
	flags.IntVar(&f.offset, "offset", 0, "number of source rows to skip")
	flags.StringVar(&f.sheet, "sheet", "", "worksheet to read from an XLSX input")
	flags.BoolVar(&f.coerce, "coerce", false, "convert source cells to their inferred column types")
	flags.IntVar(&f.headerRow, "header-row", -1, "zero-based header row index; first non-empty row when negative")
	flags.StringArrayVar(&f.lookups, "lookup", nil, "lookup table as name=path (repeatable)")
	flags.BoolVar(&f.dbLookups, "db-lookups", false, "resolve lookup tables from the database")
	flags.BoolVar(&f.recordRun, "record-run", false, "store row failures in the database run log")
	flags.StringVar(&f.table, "table", "", "read source rows from a database table instead of a file")
	flags.BoolVar(&f.includeErrors, "include-errors", true, "add an error column to CSV and XLSX output")
	flags.BoolVar(&f.failOnErrors, "fail-on-errors", false, "exit non-zero when any row fails")
	flags.Int("concurrency", 0, "rows mapped in parallel")
	flags.Bool("validate", false, "validate mapped rows against the target table")
	bindFlag(a.v, "executor.concurrency", flags.Lookup("concurrency"))
	bindFlag(a.v, "executor.validate_output", flags.Lookup("validate"))
	return cmd
}

func (a *app) runMap(ctx context.Context, f *mapFlags, args []string) error {
	def, err := config.LoadDefinition(args[0])
	if err != nil {
		return err
	}
	if len(args) < 2 && f.table == "" {
		return errors.New("an input file or --table is required")
	}
	if len(args) == 2 && f.table != "" {
		return errors.New("use either an input file or --table, not both")
	}

	var extra []mapper.Option
	var conn *db.Connection
	if f.dbLookups || f.recordRun || f.table != "" {
		if conn, err = a.connect(ctx); err != nil {
			return err
		}
		defer conn.Close()
		if f.recordRun {
			extra = append(extra, mapper.WithRunLog(repository.NewRunLogRepository(conn.Pool)))
		}
	}
	switch {
	case f.dbLookups:
		extra = append(extra, mapper.WithLookupSource(repository.NewLookupRepository(conn.Pool)))
	case len(f.lookups) > 0:
		memory, err := loadLookupFiles(f.lookups)
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

	opts := domain.MappingExecutionOptions{Limit: f.limit, Offset: f.offset}
	var records []domain.Record
	total := -1
	if f.table != "" {
		// The database pages the rows, so the executor sees them unbounded.
		records, total, err = repository.NewRecordRepository(conn.Pool).List(ctx, f.table, f.limit, f.offset)
		opts = domain.MappingExecutionOptions{}
	} else {
		records, err = a.readSource(def, args[1], f)
	}
	if err != nil {
		return err
	}

	result, runErr := executor.Execute(ctx, plan, records, opts)
	if runErr != nil && result.RunID == uuid.Nil {
		return runErr
	}
	if total >= 0 {
		result.TotalCount = total
	}
	if err := writeResult(f, plan.Target(), def.Name, result); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if f.failOnErrors && result.FailedCount > 0 {
		return fmt.Errorf("%w: %d of %d", ErrRowsFailed, result.FailedCount, len(result.Rows))
	}
	return nil
}

func (a *app) readSource(def domain.MappingDefinition, path string, f *mapFlags) ([]domain.Record, error) {
	opts := source.Options{TableName: def.Source.Name, Sheet: f.sheet, Coerce: f.coerce}
	if f.headerRow >= 0 {
		opts.HeaderRowIndex = &f.headerRow
	}
	if f.coerce && len(def.Source.Fields) > 0 {
		opts.ColumnOverrides = make(map[string]domain.FieldType, len(def.Source.Fields))
		for _, field := range def.Source.Fields {
			opts.ColumnOverrides[field.Name] = field.Type
		}
	}
	table, err := source.ParseFile(path, opts)
	if err != nil {
		return nil, err
	}
	for _, issue := range table.Issues {
		log.Warn().Int("row", issue.RowNumber).Str("field", issue.Field).Msg(issue.Message)
	}
	return table.Records, nil
}

func writeResult(f *mapFlags, target domain.TableDefinition, mappingName string, result domain.MappingExecutionResult) error {
	exportOpts := export.Options{IncludeErrors: f.includeErrors}
	if f.output == "" {
		if strings.EqualFold(f.format, "json") {
			return printJSON(os.Stdout, result)
		}
		format, err := export.ParseFormat(f.format)
		if err != nil {
			return err
		}
		return export.Write(os.Stdout, format, target, result.Rows, exportOpts)
	}

	if strings.EqualFold(filepath.Ext(f.output), ".json") {
		file, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", f.output, err)
		}
		defer file.Close()
		return printJSON(file, result)
	}
	if err := export.WriteFile(f.output, target, result.Rows, exportOpts); err != nil {
		return err
	}
	log.Info().Str("mapping", mappingName).Str("output", f.output).Int("rows", len(result.Rows)).Msg("mapped rows written")
	return nil
}
