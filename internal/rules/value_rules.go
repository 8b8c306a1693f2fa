package rules

import (
	"context"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/operations"
)

// CopyRule passes a single source value through to the target field.
type CopyRule struct {
	base
}

func NewCopy(field string, opts ...Option) (*CopyRule, error) {
	if field == "" {
		return nil, domain.ConfigError("Copy requires a source field")
	}
	r := &CopyRule{base: newBase(KindCopy, opts)}
	r.sourceField = field
	return r, nil
}

func (r *CopyRule) Evaluate(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.run(ctx, rc, func(_ context.Context, rc domain.RowContext) domain.TransformationResult {
		value, _, ok := rc.Lookup(r.sourceField)
		if !ok {
			return missingField(rc, r.sourceField)
		}
		if compare.IsCollection(value) {
			return domain.NewResult(rc, value, r.targetType).WithError(&domain.ConversionError{
				SourceType: domain.FieldTypeCollection,
				TargetType: r.targetType,
				Value:      value,
				Reason:     "Copy requires a single value",
			})
		}
		return domain.NewResult(rc, value, r.targetType)
	})
}

func (r *CopyRule) Resolve(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.Evaluate(ctx, rc)
}

func (r *CopyRule) IsEmpty() bool { return r.sourceField == "" }

func (r *CopyRule) Spec() domain.RuleSpec { return r.spec() }

func (r *CopyRule) Clone() Rule { return &CopyRule{base: r.cloneBase()} }

func (r *CopyRule) CloneOperand() operations.Operand { return r.Clone() }

// FieldAccessRule reads a field from the live row, or from the field
// descriptors when the row does not have it. Collections are allowed.
type FieldAccessRule struct {
	base
}

func NewFieldAccess(field string, opts ...Option) (*FieldAccessRule, error) {
	if field == "" {
		return nil, domain.ConfigError("FieldAccess requires a field name")
	}
	r := &FieldAccessRule{base: newBase(KindFieldAccess, opts)}
	r.sourceField = field
	return r, nil
}

func (r *FieldAccessRule) Evaluate(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.run(ctx, rc, func(_ context.Context, rc domain.RowContext) domain.TransformationResult {
		value, _, ok := rc.Lookup(r.sourceField)
		if !ok {
			return missingField(rc, r.sourceField)
		}
		return domain.NewResult(rc, value, r.targetType)
	})
}

func (r *FieldAccessRule) Resolve(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.Evaluate(ctx, rc)
}

func (r *FieldAccessRule) IsEmpty() bool { return r.sourceField == "" }

func (r *FieldAccessRule) Spec() domain.RuleSpec { return r.spec() }

func (r *FieldAccessRule) Clone() Rule { return &FieldAccessRule{base: r.cloneBase()} }

func (r *FieldAccessRule) CloneOperand() operations.Operand { return r.Clone() }

// ValueRule returns a fixed value and ignores the row. Constant rules
// populate target fields; Static rules serve as literal operands and may hold
// null.
type ValueRule struct {
	base
}

// NewConstant builds a Constant rule. value wins over detail when both are set.
func NewConstant(value any, detail string, opts ...Option) (*ValueRule, error) {
	if value == nil && detail == "" {
		return nil, domain.ConfigError("Constant requires a value")
	}
	return newValueRule(KindConstant, value, detail, opts), nil
}

// NewStatic builds a literal operand.
func NewStatic(value any, opts ...Option) *ValueRule {
	return newValueRule(KindStatic, value, "", opts)
}

func newValueRule(kind Kind, value any, detail string, opts []Option) *ValueRule {
	r := &ValueRule{base: newBase(kind, opts)}
	r.value = value
	r.detail = detail
	return r
}

func (r *ValueRule) literal() any {
	if r.value != nil {
		return r.value
	}
	if r.detail != "" {
		return r.detail
	}
	return nil
}

func (r *ValueRule) Evaluate(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.run(ctx, rc, func(_ context.Context, rc domain.RowContext) domain.TransformationResult {
		return domain.NewResult(rc, r.literal(), r.targetType)
	})
}

func (r *ValueRule) Resolve(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.Evaluate(ctx, rc)
}

func (r *ValueRule) IsEmpty() bool { return r.literal() == nil }

func (r *ValueRule) Spec() domain.RuleSpec { return r.spec() }

func (r *ValueRule) Clone() Rule { return &ValueRule{base: r.cloneBase()} }

func (r *ValueRule) CloneOperand() operations.Operand { return r.Clone() }

// IgnoreRule marks a target field as not applicable. It always succeeds with
// a null value.
type IgnoreRule struct {
	base
}

func NewIgnore(opts ...Option) *IgnoreRule {
	return &IgnoreRule{base: newBase(KindIgnore, opts)}
}

func (r *IgnoreRule) Evaluate(_ context.Context, rc domain.RowContext) domain.TransformationResult {
	return domain.NewResult(r.context(rc), nil, r.targetType)
}

func (r *IgnoreRule) Resolve(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.Evaluate(ctx, rc)
}

func (r *IgnoreRule) IsEmpty() bool { return true }

func (r *IgnoreRule) Spec() domain.RuleSpec { return r.spec() }

func (r *IgnoreRule) Clone() Rule { return &IgnoreRule{base: r.cloneBase()} }

func (r *IgnoreRule) CloneOperand() operations.Operand { return r.Clone() }
