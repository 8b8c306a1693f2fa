// Package rules implements the per-field mapping rules. A rule checks its
// gate, produces a raw value, runs its transformation chain and converts the
// value to the declared target type.
package rules

import (
	"context"
	"strings"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/operations"
	"github.com/rpattn/fieldmap/internal/transforms"
)

// Kind identifies a mapping rule variant.
type Kind string

const (
	KindCopy            Kind = "Copy"
	KindConstant        Kind = "Constant"
	KindFieldAccess     Kind = "FieldAccess"
	KindCombineFields   Kind = "CombineFields"
	KindIgnore          Kind = "Ignore"
	KindStatic          Kind = "Static"
	KindCustomFieldless Kind = "CustomFieldless"
	KindLookup          Kind = "Lookup"
)

var kinds = []Kind{
	KindCopy, KindConstant, KindFieldAccess, KindCombineFields,
	KindIgnore, KindStatic, KindCustomFieldless, KindLookup,
}

// ParseKind matches a rule name case-insensitively, ignoring separators.
func ParseKind(raw string) (Kind, bool) {
	key := normalizeName(raw)
	for _, kind := range kinds {
		if normalizeName(string(kind)) == key {
			return kind, true
		}
	}
	switch key {
	case "copyvalue", "direct":
		return KindCopy, true
	case "constantvalue":
		return KindConstant, true
	case "staticvalue":
		return KindStatic, true
	case "fieldless":
		return KindCustomFieldless, true
	}
	return "", false
}

func normalizeName(raw string) string {
	replacer := strings.NewReplacer("_", "", "-", "", " ", "")
	return replacer.Replace(strings.ToLower(strings.TrimSpace(raw)))
}

// Rule produces the value of one target field for a row. Rules are
// read-only after construction and safe to share between goroutines.
type Rule interface {
	operations.Operand
	Kind() Kind
	Evaluate(ctx context.Context, rc domain.RowContext) domain.TransformationResult
	TargetType() domain.FieldType
	// IsEmpty reports a rule with nothing configured to produce.
	IsEmpty() bool
	Clone() Rule
}

// Option adjusts the shared settings of a rule under construction.
type Option func(*base)

// Target declares the field type the final value is converted to.
func Target(fieldType domain.FieldType) Option {
	return func(b *base) {
		b.targetType = fieldType
	}
}

// When gates the rule behind comparison operations, all of which must pass.
func When(ops ...operations.Operation) Option {
	return func(b *base) {
		b.gate = NewGate(ops...)
	}
}

// Then appends value transformations to the rule's chain.
func Then(steps ...transforms.Transformation) Option {
	return func(b *base) {
		b.chain = append(b.chain, steps...)
	}
}

// InTable sets the table definition the rule belongs to. The rule refers to
// it and never copies it.
func InTable(table *domain.TableDefinition) Option {
	return func(b *base) {
		b.table = table
	}
}

type base struct {
	kind        Kind
	sourceField string
	detail      string
	value       any
	targetType  domain.FieldType
	gate        Gate
	chain       transforms.Chain
	table       *domain.TableDefinition
}

func newBase(kind Kind, opts []Option) base {
	b := base{kind: kind}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) Kind() Kind { return b.kind }

func (b *base) TargetType() domain.FieldType { return b.targetType }

func (b *base) SourceField() string { return b.sourceField }

func (b *base) Gate() Gate { return b.gate }

func (b *base) cloneBase() base {
	return base{
		kind:        b.kind,
		sourceField: b.sourceField,
		detail:      b.detail,
		value:       b.value,
		targetType:  b.targetType,
		gate:        b.gate.Clone(),
		chain:       b.chain.Clone(),
		table:       b.table,
	}
}

func (b *base) spec() domain.RuleSpec {
	return domain.RuleSpec{
		Type:            string(b.kind),
		SourceField:     b.sourceField,
		Detail:          b.detail,
		Value:           b.value,
		TargetType:      b.targetType,
		Conditions:      b.gate.Specs(),
		Transformations: b.chain.Specs(),
	}
}

func (b *base) context(rc domain.RowContext) domain.RowContext {
	if rc.Table == nil && b.table != nil {
		rc.Table = b.table
	}
	return rc
}

// run drives one row through gate, producer, chain and target conversion.
func (b *base) run(ctx context.Context, rc domain.RowContext, produce func(context.Context, domain.RowContext) domain.TransformationResult) domain.TransformationResult {
	rc = b.context(rc)
	if err := ctx.Err(); err != nil {
		return domain.NewResult(rc, nil, b.targetType).WithError(err)
	}

	pass, err := b.gate.Evaluate(ctx, rc)
	if err != nil {
		return domain.NewResult(rc, nil, b.targetType).WithError(err)
	}
	if !pass {
		return domain.NewResult(rc, nil, b.targetType).WithFailure(domain.ErrorKindConditionsNotMet, "")
	}

	result := produce(ctx, rc).WithTarget(b.targetType)
	result = b.chain.Apply(ctx, result)
	return convertResult(result, b.targetType)
}

func convertResult(result domain.TransformationResult, target domain.FieldType) domain.TransformationResult {
	if result.WasFailure() || target == "" {
		return result
	}
	converted, err := compare.Convert(result.CurrentValue(), target)
	if err != nil {
		return result.WithError(err)
	}
	return result.WithValue(converted, "")
}

func missingField(rc domain.RowContext, field string) domain.TransformationResult {
	return domain.Failure(rc, domain.ErrorKindMissingField, "field not found: "+field)
}
