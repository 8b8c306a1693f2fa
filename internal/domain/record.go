package domain

import (
	"strings"

	"github.com/google/uuid"
)

// RowProvider gives named-column random access to one source row.
type RowProvider interface {
	Value(field string) (any, bool)
}

// Record represents one source row with its column values
type Record struct {
	ID        uuid.UUID      `json:"id"`
	Source    string         `json:"source,omitempty"`
	RowNumber int            `json:"row_number"`
	Values    map[string]any `json:"values"`
}

// NewRecord creates a new record with immutable pattern
func NewRecord(source string, rowNumber int, values map[string]any) Record {
	return Record{
		ID:        uuid.New(),
		Source:    source,
		RowNumber: rowNumber,
		Values:    copyValues(values), // Deep copy to ensure immutability
	}
}

// Value implements RowProvider. An exact column name wins over a
// case-insensitive match; among several case-insensitive matches the
// lexically smallest key wins.
func (r Record) Value(field string) (any, bool) {
	if r.Values == nil {
		return nil, false
	}
	if value, ok := r.Values[field]; ok {
		return value, true
	}
	match, found := "", false
	for key := range r.Values {
		if strings.EqualFold(key, field) && (!found || key < match) {
			match, found = key, true
		}
	}
	if !found {
		return nil, false
	}
	return r.Values[match], true
}

// WithValue returns a new record with an added/updated value
func (r Record) WithValue(key string, value any) Record {
	newValues := copyValues(r.Values)
	newValues[key] = value

	return Record{
		ID:        r.ID,
		Source:    r.Source,
		RowNumber: r.RowNumber,
		Values:    newValues,
	}
}

// WithoutValue returns a new record without the specified column
func (r Record) WithoutValue(key string) Record {
	newValues := copyValues(r.Values)
	delete(newValues, key)

	return Record{
		ID:        r.ID,
		Source:    r.Source,
		RowNumber: r.RowNumber,
		Values:    newValues,
	}
}

// Clone returns a copy that shares no map with the receiver.
func (r Record) Clone() Record {
	return Record{
		ID:        r.ID,
		Source:    r.Source,
		RowNumber: r.RowNumber,
		Values:    copyValues(r.Values),
	}
}

// copyValues creates a copy of the values map to ensure immutability
func copyValues(values map[string]any) map[string]any {
	newValues := make(map[string]any, len(values))
	for k, v := range values {
		// Values are treated as immutable scalars; nested maps are shared.
		newValues[k] = v
	}
	return newValues
}

// RowContext is everything a rule may read while evaluating one row. Row is
// nil when only field descriptors are available.
type RowContext struct {
	Row    RowProvider
	Fields []FieldDescriptor
	Table  *TableDefinition
}

// ForRecord builds a context for a live record.
func ForRecord(record Record, table *TableDefinition) RowContext {
	return RowContext{Row: record, Table: table}
}

// ForDescriptors builds a row-independent context.
func ForDescriptors(fields []FieldDescriptor, table *TableDefinition) RowContext {
	return RowContext{Fields: copyDescriptors(fields), Table: table}
}

// Lookup resolves a field from the live row first and the descriptor list
// second. The returned type is the declared type when known.
func (rc RowContext) Lookup(field string) (any, FieldType, bool) {
	if rc.Row != nil {
		if value, ok := rc.Row.Value(field); ok {
			declared := InferFieldType(value)
			if rc.Table != nil {
				if def, found := rc.Table.FieldByName(field); found && def.Type != "" {
					declared = def.Type
				}
			}
			return value, declared, true
		}
	}
	for _, descriptor := range rc.Fields {
		if descriptor.FieldName == field || strings.EqualFold(descriptor.FieldName, field) {
			value := descriptor.Value()
			fieldType := descriptor.FieldType
			if fieldType == "" {
				fieldType = InferFieldType(value)
			}
			return value, fieldType, true
		}
	}
	return nil, "", false
}

// RowNumber reports the source row number when the row is a Record.
func (rc RowContext) RowNumber() (int, bool) {
	switch row := rc.Row.(type) {
	case Record:
		return row.RowNumber, true
	case *Record:
		if row != nil {
			return row.RowNumber, true
		}
	}
	return 0, false
}
