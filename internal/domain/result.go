package domain

import (
	"encoding/json"
	"errors"
)

// TransformationResult is an immutable snapshot of a value at one pipeline
// stage. Every step returns a new result; nothing mutates an existing one.
type TransformationResult struct {
	originalValue     any
	originalValueType FieldType
	currentValue      any
	currentValueType  FieldType
	targetFieldType   FieldType
	wasFailure        bool
	errorKind         ErrorKind
	errorMessage      string
	log               []string
	record            RowProvider
	sourceContext     []FieldDescriptor
	table             *TableDefinition
}

// NewResult starts a pipeline for one row. The value is both the original
// and the current value.
func NewResult(rc RowContext, value any, target FieldType) TransformationResult {
	valueType := InferFieldType(value)
	return TransformationResult{
		originalValue:     value,
		originalValueType: valueType,
		currentValue:      value,
		currentValueType:  valueType,
		targetFieldType:   target,
		record:            rc.Row,
		sourceContext:     rc.Fields,
		table:             rc.Table,
	}
}

// Failure starts a pipeline that has already failed.
func Failure(rc RowContext, kind ErrorKind, message string) TransformationResult {
	return NewResult(rc, nil, "").WithFailure(kind, message)
}

func (r TransformationResult) OriginalValue() any                { return r.originalValue }
func (r TransformationResult) OriginalValueType() FieldType      { return r.originalValueType }
func (r TransformationResult) CurrentValue() any                 { return r.currentValue }
func (r TransformationResult) CurrentValueType() FieldType       { return r.currentValueType }
func (r TransformationResult) TargetFieldType() FieldType        { return r.targetFieldType }
func (r TransformationResult) WasFailure() bool                  { return r.wasFailure }
func (r TransformationResult) ErrorKind() ErrorKind              { return r.errorKind }
func (r TransformationResult) ErrorMessage() string              { return r.errorMessage }
func (r TransformationResult) Record() RowProvider               { return r.record }
func (r TransformationResult) TableDefinition() *TableDefinition { return r.table }

// AppliedTransformations returns a copy of the step log.
func (r TransformationResult) AppliedTransformations() []string {
	if len(r.log) == 0 {
		return nil
	}
	out := make([]string, len(r.log))
	copy(out, r.log)
	return out
}

// SourceRecordContext returns a copy of the descriptor list the result was
// created from.
func (r TransformationResult) SourceRecordContext() []FieldDescriptor {
	return copyDescriptors(r.sourceContext)
}

// Context rebuilds the row context the result belongs to.
func (r TransformationResult) Context() RowContext {
	return RowContext{Row: r.record, Fields: r.sourceContext, Table: r.table}
}

// Skipped reports that a rule's gate suppressed execution. This is a designed
// outcome, not an error.
func (r TransformationResult) Skipped() bool {
	return r.wasFailure && r.errorKind == ErrorKindConditionsNotMet
}

// Err returns the failure as an error value, or nil.
func (r TransformationResult) Err() error {
	if !r.wasFailure {
		return nil
	}
	return &EvaluationError{Kind: r.errorKind, Message: r.errorMessage}
}

// WithValue records a successful step. The step name is appended to the log.
func (r TransformationResult) WithValue(value any, step string) TransformationResult {
	next := r
	next.currentValue = value
	next.currentValueType = InferFieldType(value)
	next.log = appendLog(r.log, step)
	return next
}

// WithTarget returns a copy that declares a target field type.
func (r TransformationResult) WithTarget(target FieldType) TransformationResult {
	next := r
	next.targetFieldType = target
	return next
}

// WithFailure returns a failed copy. An empty message is replaced with the
// kind's default text so a failure is never silent.
func (r TransformationResult) WithFailure(kind ErrorKind, message string) TransformationResult {
	if kind == ErrorKindNone {
		kind = ErrorKindEvaluation
	}
	if message == "" {
		message = kind.DefaultMessage()
	}
	next := r
	next.wasFailure = true
	next.errorKind = kind
	next.errorMessage = message
	return next
}

// WithLogEntry returns a copy with one more log entry and nothing else
// changed. Chains use it to attribute a failure to the step that caused it.
func (r TransformationResult) WithLogEntry(entry string) TransformationResult {
	next := r
	next.log = appendLog(r.log, entry)
	return next
}

// WithError returns a failed copy carrying err's kind and message.
func (r TransformationResult) WithError(err error) TransformationResult {
	if err == nil {
		return r
	}
	kind := KindOf(err)
	message := err.Error()
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) && evalErr.Err == nil && evalErr.Message != "" {
		message = evalErr.Message
	}
	return r.WithFailure(kind, message)
}

func appendLog(log []string, step string) []string {
	out := make([]string, len(log), len(log)+1)
	copy(out, log)
	if step != "" {
		out = append(out, step)
	}
	return out
}

type resultView struct {
	OriginalValue          any       `json:"originalValue"`
	OriginalValueType      FieldType `json:"originalValueType,omitempty"`
	CurrentValue           any       `json:"currentValue"`
	CurrentValueType       FieldType `json:"currentValueType,omitempty"`
	TargetFieldType        FieldType `json:"targetFieldType,omitempty"`
	WasFailure             bool      `json:"wasFailure"`
	ErrorKind              ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage           string    `json:"errorMessage,omitempty"`
	AppliedTransformations []string  `json:"appliedTransformations,omitempty"`
}

func (r TransformationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultView{
		OriginalValue:          r.originalValue,
		OriginalValueType:      r.originalValueType,
		CurrentValue:           r.currentValue,
		CurrentValueType:       r.currentValueType,
		TargetFieldType:        r.targetFieldType,
		WasFailure:             r.wasFailure,
		ErrorKind:              r.errorKind,
		ErrorMessage:           r.errorMessage,
		AppliedTransformations: r.log,
	})
}
