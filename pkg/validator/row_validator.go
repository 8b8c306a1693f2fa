package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

// RowValidator checks mapped values against the target table definition
type RowValidator struct {
	// Strict reports values for fields the table does not declare as errors
	// instead of warnings.
	Strict bool
}

// NewRowValidator creates a new row validator
func NewRowValidator() *RowValidator {
	return &RowValidator{}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// ValidateRow validates mapped values against the target table's field definitions
func (rv *RowValidator) ValidateRow(values map[string]any, table domain.TableDefinition) ValidationResult {
	result := ValidationResult{
		IsValid:  true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	for _, field := range table.Fields {
		value, exists := values[field.Name]

		// Required field missing
		if field.Required && (!exists || value == nil) {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   field.Name,
				Message: fmt.Sprintf("required field '%s' is missing", field.Name),
			})
			continue
		}

		if !exists || value == nil {
			continue
		}

		if err := rv.validateFieldType(field.Name, value, field.Type); err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   field.Name,
				Message: err.Error(),
				Value:   value,
			})
		}
	}

	for name, value := range values {
		if _, declared := table.FieldByName(name); declared {
			continue
		}
		issue := ValidationError{
			Field:   name,
			Message: fmt.Sprintf("field '%s' is not defined in table %s", name, table.Name),
			Value:   value,
		}
		if rv.Strict {
			result.IsValid = false
			result.Errors = append(result.Errors, issue)
		} else {
			result.Warnings = append(result.Warnings, issue)
		}
	}

	return result
}

// validateFieldType validates the type of a field value
func (rv *RowValidator) validateFieldType(fieldName string, value any, expectedType domain.FieldType) error {
	switch expectedType {
	case domain.FieldTypeString:
		if !compare.IsString(value) {
			return fmt.Errorf("field '%s' must be a string, got %T", fieldName, value)
		}
	case domain.FieldTypeInteger:
		if !rv.isInteger(value) {
			return fmt.Errorf("field '%s' must be an integer, got %T", fieldName, value)
		}
	case domain.FieldTypeFloat, domain.FieldTypeDecimal:
		if !rv.isNumber(value) {
			return fmt.Errorf("field '%s' must be a number, got %T", fieldName, value)
		}
	case domain.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' must be a boolean, got %T", fieldName, value)
		}
	case domain.FieldTypeTimestamp:
		switch v := value.(type) {
		case time.Time:
			// already parsed; accept value
		case string:
			if _, err := compare.ParseTime(v); err != nil {
				return fmt.Errorf("field '%s' must be a valid timestamp: %v", fieldName, err)
			}
		default:
			return fmt.Errorf("field '%s' must be a timestamp, got %T", fieldName, value)
		}
	case domain.FieldTypeJSON:
		if _, err := json.Marshal(value); err != nil {
			return fmt.Errorf("field '%s' contains invalid JSON: %v", fieldName, err)
		}
	default:
		return fmt.Errorf("unknown field type: %s", expectedType)
	}

	return nil
}

// Helper methods for type checking
func (rv *RowValidator) isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return !math.IsInf(v, 0) && v == math.Trunc(v)
	case decimal.Decimal:
		return v.IsInteger()
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return err == nil && d.IsInteger()
	default:
		return false
	}
}

func (rv *RowValidator) isNumber(value any) bool {
	switch v := value.(type) {
	case string:
		_, err := decimal.NewFromString(strings.TrimSpace(v))
		return err == nil
	case bool:
		return false
	default:
		_, ok := compare.ToDecimal(value)
		return ok
	}
}
