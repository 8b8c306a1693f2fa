package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleSpec is the plain-data form of a mapping rule. It round-trips through
// JSON and YAML without losing operand trees.
type RuleSpec struct {
	Type            string               `json:"type" yaml:"type"`
	SourceField     string               `json:"sourceField,omitempty" yaml:"sourceField,omitempty"`
	Detail          string               `json:"detail,omitempty" yaml:"detail,omitempty"`
	Value           any                  `json:"value,omitempty" yaml:"value,omitempty"`
	TargetType      FieldType            `json:"targetType,omitempty" yaml:"targetType,omitempty"`
	Conditions      []ConditionSpec      `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Transformations []TransformationSpec `json:"transformations,omitempty" yaml:"transformations,omitempty"`
	Inputs          []InputSpec          `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Lookup          *LookupSpec          `json:"lookup,omitempty" yaml:"lookup,omitempty"`
}

// ConditionSpec is the plain-data form of a comparison operation.
type ConditionSpec struct {
	Operation string     `json:"operation" yaml:"operation"`
	Left      *RuleSpec  `json:"left,omitempty" yaml:"left,omitempty"`
	Right     *RuleSpec  `json:"right,omitempty" yaml:"right,omitempty"`
	Low       *RuleSpec  `json:"low,omitempty" yaml:"low,omitempty"`
	High      *RuleSpec  `json:"high,omitempty" yaml:"high,omitempty"`
	Values    []RuleSpec `json:"values,omitempty" yaml:"values,omitempty"`
}

// TransformationSpec is the plain-data form of a value transformation.
type TransformationSpec struct {
	Type          string      `json:"type" yaml:"type"`
	Detail        string      `json:"detail,omitempty" yaml:"detail,omitempty"`
	DecimalPlaces *int        `json:"decimalPlaces,omitempty" yaml:"decimalPlaces,omitempty"`
	Arguments     []string    `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Inputs        []InputSpec `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// InputSpec is the plain-data form of a configured input field: a field name
// or a constant, each with its own transformation chain.
type InputSpec struct {
	Field           string               `json:"field,omitempty" yaml:"field,omitempty"`
	Constant        *string              `json:"constant,omitempty" yaml:"constant,omitempty"`
	Transformations []TransformationSpec `json:"transformations,omitempty" yaml:"transformations,omitempty"`
}

// LookupSpec names the table and columns a lookup rule reads.
type LookupSpec struct {
	Table       string `json:"table" yaml:"table"`
	KeyColumn   string `json:"keyColumn" yaml:"keyColumn"`
	ValueColumn string `json:"valueColumn" yaml:"valueColumn"`
}

// FieldMapping binds one target field to the rule that populates it.
type FieldMapping struct {
	TargetField string   `json:"targetField" yaml:"targetField"`
	Rule        RuleSpec `json:"rule" yaml:"rule"`
}

// MappingDefinition maps a source table onto a target table.
type MappingDefinition struct {
	ID          uuid.UUID       `json:"id" yaml:"id,omitempty"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Source      TableDefinition `json:"source" yaml:"source"`
	Target      TableDefinition `json:"target" yaml:"target"`
	Fields      []FieldMapping  `json:"fields" yaml:"fields"`
	CreatedAt   time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"-"`
}

// NewMappingDefinition creates a definition with a fresh identifier.
func NewMappingDefinition(name string, source, target TableDefinition, fields []FieldMapping) MappingDefinition {
	now := time.Now()
	return MappingDefinition{
		ID:        uuid.New(),
		Name:      name,
		Source:    source.Clone(),
		Target:    target.Clone(),
		Fields:    copyFieldMappings(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithDescription returns a copy of the definition with a new description.
func (d MappingDefinition) WithDescription(description string) MappingDefinition {
	d.Description = description
	d.UpdatedAt = time.Now()
	return d
}

// FieldMappingFor returns the mapping configured for a target field. An
// exact name wins over a case-insensitive match.
func (d MappingDefinition) FieldMappingFor(targetField string) (FieldMapping, bool) {
	for _, mapping := range d.Fields {
		if mapping.TargetField == targetField {
			return mapping, true
		}
	}
	for _, mapping := range d.Fields {
		if strings.EqualFold(mapping.TargetField, targetField) {
			return mapping, true
		}
	}
	return FieldMapping{}, false
}

func copyFieldMappings(fields []FieldMapping) []FieldMapping {
	if fields == nil {
		return nil
	}
	cloned := make([]FieldMapping, len(fields))
	copy(cloned, fields)
	return cloned
}

func FieldMappingsToJSON(fields []FieldMapping) (json.RawMessage, error) {
	if fields == nil {
		fields = []FieldMapping{}
	}
	return json.Marshal(fields)
}

func FieldMappingsFromJSON(data json.RawMessage) ([]FieldMapping, error) {
	if len(data) == 0 {
		return []FieldMapping{}, nil
	}
	var fields []FieldMapping
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []FieldMapping{}
	}
	return fields, nil
}

func TableDefinitionToJSON(table TableDefinition) (json.RawMessage, error) {
	return json.Marshal(table)
}

func TableDefinitionFromJSON(data json.RawMessage) (TableDefinition, error) {
	var table TableDefinition
	if len(data) == 0 {
		return table, nil
	}
	err := json.Unmarshal(data, &table)
	return table, err
}

// MappingExecutionOptions bounds which source rows are mapped.
type MappingExecutionOptions struct {
	Limit  int
	Offset int
}

// FieldOutcome is the per-field, per-row product of a mapping.
type FieldOutcome struct {
	Field     string    `json:"field"`
	Value     any       `json:"value"`
	Failed    bool      `json:"failed"`
	Skipped   bool      `json:"skipped,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Error     string    `json:"error,omitempty"`
	Steps     []string  `json:"steps,omitempty"`
}

// MappedRow is one source row mapped onto the target table.
type MappedRow struct {
	RecordID  uuid.UUID      `json:"recordId"`
	RowNumber int            `json:"rowNumber"`
	Fields    []FieldOutcome `json:"fields"`
}

// Values returns the successfully mapped values keyed by target field.
func (r MappedRow) Values() map[string]any {
	values := make(map[string]any, len(r.Fields))
	for _, field := range r.Fields {
		if field.Failed {
			continue
		}
		values[field.Field] = field.Value
	}
	return values
}

// Failures returns the outcomes that errored; skipped fields are excluded.
func (r MappedRow) Failures() []FieldOutcome {
	var failures []FieldOutcome
	for _, field := range r.Fields {
		if field.Failed && !field.Skipped {
			failures = append(failures, field)
		}
	}
	return failures
}

// MappingExecutionResult is the product of mapping a dataset.
type MappingExecutionResult struct {
	RunID       uuid.UUID   `json:"runId"`
	Rows        []MappedRow `json:"rows"`
	TotalCount  int         `json:"totalCount"`
	FailedCount int         `json:"failedCount"`
}
