package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldType represents the declared type of a source or target field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeFloat     FieldType = "float"
	FieldTypeDecimal   FieldType = "decimal"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeJSON      FieldType = "json"
	// FieldTypeCollection is only ever inferred from run-time values; schemas
	// cannot declare it.
	FieldTypeCollection FieldType = "collection"
	FieldTypeNull       FieldType = "null"
	FieldTypeUnknown    FieldType = "unknown"
)

var declarableFieldTypes = map[FieldType]struct{}{
	FieldTypeString:    {},
	FieldTypeInteger:   {},
	FieldTypeFloat:     {},
	FieldTypeDecimal:   {},
	FieldTypeBoolean:   {},
	FieldTypeTimestamp: {},
	FieldTypeJSON:      {},
}

// ParseFieldType normalises a user supplied type name. Aliases commonly found
// in database catalogs are accepted.
func ParseFieldType(raw string) (FieldType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "string", "text", "varchar", "char":
		return FieldTypeString, true
	case "integer", "int", "int32", "int64", "bigint", "smallint", "long":
		return FieldTypeInteger, true
	case "float", "double", "real", "float64":
		return FieldTypeFloat, true
	case "decimal", "numeric", "money":
		return FieldTypeDecimal, true
	case "boolean", "bool", "bit":
		return FieldTypeBoolean, true
	case "timestamp", "datetime", "date", "time", "timestamptz":
		return FieldTypeTimestamp, true
	case "json", "jsonb", "object":
		return FieldTypeJSON, true
	default:
		return "", false
	}
}

// IsDeclarable reports whether the type may appear in a table definition.
func (t FieldType) IsDeclarable() bool {
	_, ok := declarableFieldTypes[t]
	return ok
}

// InferFieldType reports the field type a run-time value behaves as.
func InferFieldType(value any) FieldType {
	switch value.(type) {
	case nil:
		return FieldTypeNull
	case string, *string, []byte, uuid.UUID:
		return FieldTypeString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return FieldTypeInteger
	case float32, float64:
		return FieldTypeFloat
	case decimal.Decimal, json.Number:
		return FieldTypeDecimal
	case bool:
		return FieldTypeBoolean
	case time.Time, *time.Time:
		return FieldTypeTimestamp
	case map[string]any:
		return FieldTypeJSON
	case []any, []string, []int, []int64, []float64:
		return FieldTypeCollection
	default:
		return FieldTypeUnknown
	}
}

// FieldDefinition describes one column of a source or target table.
type FieldDefinition struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type" yaml:"type"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Default     string    `json:"default,omitempty" yaml:"default,omitempty"`
}

// TableDefinition is a named, ordered set of fields. Rules hold it as a
// back-reference only; they never own or mutate it.
type TableDefinition struct {
	Name   string            `json:"name" yaml:"name"`
	Fields []FieldDefinition `json:"fields" yaml:"fields"`
}

// FieldByName returns the definition with the given name. Matching falls back
// to a case-insensitive comparison.
func (t TableDefinition) FieldByName(name string) (FieldDefinition, bool) {
	for _, field := range t.Fields {
		if field.Name == name {
			return field, true
		}
	}
	for _, field := range t.Fields {
		if strings.EqualFold(field.Name, name) {
			return field, true
		}
	}
	return FieldDefinition{}, false
}

// FieldNames returns the ordered field names.
func (t TableDefinition) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for _, field := range t.Fields {
		names = append(names, field.Name)
	}
	return names
}

// Clone returns a deep copy of the definition.
func (t TableDefinition) Clone() TableDefinition {
	return TableDefinition{Name: t.Name, Fields: copyFields(t.Fields)}
}

// copyFields creates a copy of the fields slice to ensure immutability
func copyFields(fields []FieldDefinition) []FieldDefinition {
	if fields == nil {
		return nil
	}
	newFields := make([]FieldDefinition, len(fields))
	copy(newFields, fields)
	return newFields
}

// FieldDescriptor stands in for a live row when none exists, e.g. while a
// mapping is previewed at design time.
type FieldDescriptor struct {
	FieldName string    `json:"fieldName" yaml:"fieldName"`
	FieldType FieldType `json:"fieldType,omitempty" yaml:"fieldType,omitempty"`
	ValueSet  []any     `json:"valueSet,omitempty" yaml:"valueSet,omitempty"`
}

// Value returns the descriptor's value: nil when the set is empty, the single
// element when it has one, and the whole set otherwise.
func (d FieldDescriptor) Value() any {
	switch len(d.ValueSet) {
	case 0:
		return nil
	case 1:
		return d.ValueSet[0]
	default:
		values := make([]any, len(d.ValueSet))
		copy(values, d.ValueSet)
		return values
	}
}

func copyDescriptors(fields []FieldDescriptor) []FieldDescriptor {
	if fields == nil {
		return nil
	}
	cloned := make([]FieldDescriptor, len(fields))
	copy(cloned, fields)
	return cloned
}
