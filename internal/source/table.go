package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned when a file is neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Options controls how a tabular file is read.
type Options struct {
	// TableName names the resulting table; the file name without extension
	// is used when empty.
	TableName string
	// HeaderRowIndex selects the header row; the first non-empty row is used
	// when nil.
	HeaderRowIndex *int
	// ColumnOverrides replaces inferred column types by sanitized header.
	ColumnOverrides map[string]domain.FieldType
	// Sheet selects the XLSX worksheet; the first sheet is used when empty.
	Sheet string
	// Coerce converts cells to their column type. Cells that cannot be
	// converted keep their text and are reported as issues.
	Coerce bool
}

// RowIssue reports a cell that could not be coerced to its column type.
type RowIssue struct {
	RowNumber int    `json:"rowNumber"`
	Field     string `json:"field"`
	Message   string `json:"message"`
}

// Table is a parsed source file: an inferred definition plus its rows.
type Table struct {
	Definition     domain.TableDefinition `json:"definition"`
	Records        []domain.Record        `json:"records"`
	RawHeaders     []string               `json:"rawHeaders"`
	HeaderRowIndex int                    `json:"headerRowIndex"`
	Issues         []RowIssue             `json:"issues,omitempty"`
}

type tableData struct {
	headers        []string
	rawHeaders     []string
	rows           [][]string
	headerRowIndex int
}

// ParseFile reads a CSV or XLSX file from disk.
func ParseFile(path string, opts Options) (Table, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseBytes(filepath.Base(path), payload, opts)
}

// Parse reads a CSV or XLSX payload; the format is chosen by the file
// extension.
func Parse(fileName string, data io.Reader, opts Options) (Table, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	return ParseBytes(fileName, payload, opts)
}

func ParseBytes(fileName string, payload []byte, opts Options) (Table, error) {
	table, err := parseTable(fileName, payload, opts)
	if err != nil {
		return Table{}, err
	}

	name := opts.TableName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	}
	fields := applyOverridesToDefinitions(inferFieldDefinitions(table), opts.ColumnOverrides)

	result := Table{
		Definition:     domain.TableDefinition{Name: name, Fields: fields},
		Records:        make([]domain.Record, 0, len(table.rows)),
		RawHeaders:     table.rawHeaders,
		HeaderRowIndex: table.headerRowIndex,
	}
	for i, row := range table.rows {
		rowNumber := i + 1
		values := make(map[string]any, len(fields))
		for col, field := range fields {
			raw := row[col]
			if !opts.Coerce {
				values[field.Name] = raw
				continue
			}
			value, err := coerceValue(field.Type, raw)
			if err != nil {
				result.Issues = append(result.Issues, RowIssue{RowNumber: rowNumber, Field: field.Name, Message: err.Error()})
				value = raw
			}
			values[field.Name] = value
		}
		result.Records = append(result.Records, domain.NewRecord(fileName, rowNumber, values))
	}
	return result, nil
}

// Descriptors builds a field descriptor list for the table, sampling up to
// n distinct non-empty values per column.
func Descriptors(table Table, n int) []domain.FieldDescriptor {
	descriptors := make([]domain.FieldDescriptor, 0, len(table.Definition.Fields))
	for _, field := range table.Definition.Fields {
		descriptor := domain.FieldDescriptor{FieldName: field.Name, FieldType: field.Type}
		for _, record := range table.Records {
			if len(descriptor.ValueSet) >= n {
				break
			}
			value, ok := record.Value(field.Name)
			if !ok || value == nil || compare.IsWhiteSpace(value) {
				continue
			}
			if containsValue(descriptor.ValueSet, value) {
				continue
			}
			descriptor.ValueSet = append(descriptor.ValueSet, value)
		}
		descriptors = append(descriptors, descriptor)
	}
	return descriptors
}

func containsValue(values []any, value any) bool {
	for _, existing := range values {
		if compare.Equal(existing, value) {
			return true
		}
	}
	return false
}

func parseTable(fileName string, payload []byte, opts Options) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv", ".txt":
		return parseCSV(payload, opts.HeaderRowIndex)
	case ".xlsx":
		return parseExcel(payload, opts.Sheet, opts.HeaderRowIndex)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}
	return normalizeTable(records, headerRowIndex)
}

func parseExcel(payload []byte, sheet string, headerRowIndex *int) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return tableData{}, errors.New("excel file has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	return normalizeTable(rows, headerRowIndex)
}

func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string
	headerIndex := -1

	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("header row index %d out of range", *headerRowIndex)
		}
		if isBlankRow(records[*headerRowIndex]) {
			return tableData{}, fmt.Errorf("selected header row %d is empty", *headerRowIndex+1)
		}
		headerRow = records[*headerRowIndex]
		headerIndex = *headerRowIndex
		dataRows = append(dataRows, records[*headerRowIndex+1:]...)
	} else {
		for idx, row := range records {
			if isBlankRow(row) {
				continue
			}
			headerRow = row
			headerIndex = idx
			dataRows = append(dataRows, records[idx+1:]...)
			break
		}
	}

	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(headerRow)
	rawHeaders := make([]string, len(headerRow))
	for i, value := range headerRow {
		rawHeaders[i] = strings.TrimSpace(value)
	}

	rows := make([][]string, 0, len(dataRows))
	for _, row := range dataRows {
		if isBlankRow(row) {
			continue
		}
		rows = append(rows, padRow(row, len(headers)))
	}

	return tableData{
		headers:        headers,
		rawHeaders:     rawHeaders,
		rows:           rows,
		headerRowIndex: headerIndex,
	}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)
	used := make(map[string]struct{}, len(raw))

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		// Suffixes skip names already taken, including literal headers such
		// as "a_2" that precede a duplicate "a".
		base := strings.ToLower(name)
		candidate := name
		for n := seen[base] + 1; ; n++ {
			if _, taken := used[strings.ToLower(candidate)]; !taken {
				break
			}
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		seen[base]++
		used[strings.ToLower(candidate)] = struct{}{}

		headers[idx] = candidate
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
