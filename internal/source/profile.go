package source

import (
	"math"
	"strconv"
	"strings"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

func inferFieldDefinitions(table tableData) []domain.FieldDefinition {
	definitions := make([]domain.FieldDefinition, 0, len(table.headers))
	for idx, header := range table.headers {
		fieldType, required := profileColumn(idx, table.rows)
		definitions = append(definitions, domain.FieldDefinition{
			Name:     header,
			Type:     fieldType,
			Required: required,
		})
	}
	return definitions
}

func applyOverridesToDefinitions(fields []domain.FieldDefinition, overrides map[string]domain.FieldType) []domain.FieldDefinition {
	if len(fields) == 0 || len(overrides) == 0 {
		return fields
	}
	overridden := make([]domain.FieldDefinition, len(fields))
	for idx, field := range fields {
		if override, ok := overrides[field.Name]; ok && override != "" {
			field.Type = override
		}
		overridden[idx] = field
	}
	return overridden
}

// profileColumn picks the narrowest type every non-empty cell of the column
// satisfies. The column is required when no cell is empty.
func profileColumn(col int, rows [][]string) (domain.FieldType, bool) {
	isBool := true
	isInt := true
	isFloat := true
	isTimestamp := true
	allPresent := true
	hasValue := false

	for _, row := range rows {
		if col >= len(row) {
			allPresent = false
			continue
		}

		value := strings.TrimSpace(row[col])
		if value == "" {
			allPresent = false
			continue
		}

		hasValue = true

		if isBool && !looksLikeBool(value) {
			isBool = false
		}
		if isInt && !looksLikeInt(value) {
			isInt = false
		}
		if isFloat && !looksLikeFloat(value) {
			isFloat = false
		}
		if isTimestamp && !looksLikeTimestamp(value) {
			isTimestamp = false
		}
	}

	required := allPresent && hasValue
	switch {
	case !hasValue:
		return domain.FieldTypeString, false
	case isBool:
		return domain.FieldTypeBoolean, required
	case isInt:
		return domain.FieldTypeInteger, required
	case isFloat:
		return domain.FieldTypeFloat, required
	case isTimestamp:
		return domain.FieldTypeTimestamp, required
	default:
		return domain.FieldTypeString, required
	}
}

func looksLikeBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "false", "yes", "no":
		return true
	}
	return false
}

func looksLikeInt(value string) bool {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	// Allow float representations that can be losslessly converted to int.
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return math.Mod(f, 1) == 0
	}
	return false
}

func looksLikeFloat(value string) bool {
	f, err := strconv.ParseFloat(value, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func looksLikeTimestamp(value string) bool {
	_, err := compare.ParseTime(value)
	return err == nil
}

// coerceValue converts a cell to its column type. Blank cells become null.
func coerceValue(fieldType domain.FieldType, raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	if fieldType == domain.FieldTypeString {
		return raw, nil
	}
	return compare.Convert(strings.TrimSpace(raw), fieldType)
}
