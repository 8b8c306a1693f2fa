package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a rule, operation or transformation failed.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindConfiguration     ErrorKind = "configuration"
	ErrorKindOperandEvaluation ErrorKind = "operand_evaluation"
	ErrorKindConversion        ErrorKind = "conversion"
	ErrorKindExpressionSyntax  ErrorKind = "expression_syntax"
	ErrorKindConditionsNotMet  ErrorKind = "conditions_not_met"
	ErrorKindMissingField      ErrorKind = "missing_field"
	ErrorKindEvaluation        ErrorKind = "evaluation"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrOperandEvaluation = errors.New("operand evaluation failed")
	ErrConversion        = errors.New("conversion failed")
	ErrExpressionSyntax  = errors.New("invalid expression format")
	ErrConditionsNotMet  = errors.New("conditions not met")
	ErrMissingField      = errors.New("field not found")
	ErrEvaluation        = errors.New("evaluation failed")
)

var kindSentinels = map[ErrorKind]error{
	ErrorKindConfiguration:     ErrConfiguration,
	ErrorKindOperandEvaluation: ErrOperandEvaluation,
	ErrorKindConversion:        ErrConversion,
	ErrorKindExpressionSyntax:  ErrExpressionSyntax,
	ErrorKindConditionsNotMet:  ErrConditionsNotMet,
	ErrorKindMissingField:      ErrMissingField,
	ErrorKindEvaluation:        ErrEvaluation,
}

// DefaultMessage is used when a failure is reported without a message.
func (k ErrorKind) DefaultMessage() string {
	if sentinel, ok := kindSentinels[k]; ok {
		return sentinel.Error()
	}
	return ErrEvaluation.Error()
}

// EvaluationError carries a failure kind across rule boundaries.
type EvaluationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *EvaluationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.DefaultMessage()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *EvaluationError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// NewError builds an EvaluationError with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *EvaluationError {
	return &EvaluationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ConfigError reports a setup mistake detected before any row is processed.
func ConfigError(format string, args ...any) *EvaluationError {
	return NewError(ErrorKindConfiguration, format, args...)
}

// KindOf extracts the failure kind of err, defaulting to ErrorKindEvaluation.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr.Kind
	}
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return ErrorKindConversion
	}
	return ErrorKindEvaluation
}

// ConversionError reports a value that could not be coerced to a target type.
type ConversionError struct {
	SourceType FieldType
	TargetType FieldType
	Value      any
	Reason     string
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("cannot convert %s value %v to %s", e.SourceType, e.Value, e.TargetType)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrConversion
}
