package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/fieldmap/internal/domain"
)

// ErrorsColumn is the header of the column listing a row's field failures.
const ErrorsColumn = "_errors"

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for formats other than CSV and XLSX.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat accepts a format name or a file extension.
func ParseFormat(value string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), ".") {
	case "csv", "":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, value)
	}
}

// Options controls the exported columns.
type Options struct {
	// IncludeErrors appends the _errors column.
	IncludeErrors bool
	// SheetName names the XLSX worksheet; the target table name is used when empty.
	SheetName string
}

// Write renders mapped rows in the target table's column order.
func Write(w io.Writer, format Format, table domain.TableDefinition, rows []domain.MappedRow, opts Options) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, table, rows, opts)
	case FormatXLSX:
		return WriteXLSX(w, table, rows, opts)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// WriteFile writes to a temporary file next to path and renames it into
// place once complete. The format follows the file extension.
func WriteFile(path string, table domain.TableDefinition, rows []domain.MappedRow, opts Options) (err error) {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	tempFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		if err != nil {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	buffered := bufio.NewWriterSize(tempFile, 1<<20)
	if err = Write(buffered, format, table, rows, opts); err != nil {
		return err
	}
	if err = buffered.Flush(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	if err = tempFile.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	if err = os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("move export into place: %w", err)
	}
	return nil
}

// WriteCSV writes a header row followed by one line per mapped row.
func WriteCSV(w io.Writer, table domain.TableDefinition, rows []domain.MappedRow, opts Options) error {
	csvWriter := csv.NewWriter(w)
	headers := columnHeaders(table, opts)
	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(headers))
	for _, row := range rows {
		values := row.Values()
		for i, field := range table.Fields {
			record[i] = formatValue(values[field.Name])
		}
		if opts.IncludeErrors {
			record[len(record)-1] = errorsCell(row)
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", row.RowNumber, err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a single worksheet workbook with native cell types.
func WriteXLSX(w io.Writer, table domain.TableDefinition, rows []domain.MappedRow, opts Options) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := sheetName(opts.SheetName, table.Name)
	if sheet != f.GetSheetName(0) {
		if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
			return fmt.Errorf("name sheet: %w", err)
		}
	}
	stream, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet stream: %w", err)
	}

	headers := columnHeaders(table, opts)
	headerRow := make([]any, len(headers))
	for i, header := range headers {
		headerRow[i] = header
	}
	if err := stream.SetRow("A1", headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for idx, row := range rows {
		values := row.Values()
		cells := make([]any, len(headers))
		for i, field := range table.Fields {
			cells[i] = cellValue(values[field.Name])
		}
		if opts.IncludeErrors {
			cells[len(cells)-1] = errorsCell(row)
		}
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return err
		}
		if err := stream.SetRow(cell, cells); err != nil {
			return fmt.Errorf("write row %d: %w", row.RowNumber, err)
		}
	}
	if err := stream.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// DefaultFileName names an export after its mapping.
func DefaultFileName(mappingName string, format Format) string {
	return sanitizeFileComponent(mappingName) + "." + string(format)
}

func columnHeaders(table domain.TableDefinition, opts Options) []string {
	headers := table.FieldNames()
	if opts.IncludeErrors {
		headers = append(headers, ErrorsColumn)
	}
	return headers
}

// errorsCell lists failed fields as "field: message" pairs. Skipped fields
// are not errors.
func errorsCell(row domain.MappedRow) string {
	failures := row.Failures()
	if len(failures) == 0 {
		return ""
	}
	parts := make([]string, len(failures))
	for i, failure := range failures {
		parts[i] = failure.Field + ": " + truncate(failure.Error)
	}
	return strings.Join(parts, "; ")
}

func sheetName(name, fallback string) string {
	if name == "" {
		name = fallback
	}
	if name == "" {
		name = "Sheet1"
	}
	// Excel limits sheet names to 31 characters.
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}

// cellValue keeps numbers, booleans and times native for spreadsheets.
func cellValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return v
	case time.Time:
		return v.UTC()
	case decimal.Decimal:
		return v.InexactFloat64()
	default:
		return formatValue(v)
	}
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	case float32, float64, int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%v", v)
	case []byte:
		return string(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truncate(msg string) string {
	const maxLen = 512
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
