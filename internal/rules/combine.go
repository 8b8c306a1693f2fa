package rules

import (
	"context"

	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/operations"
	"github.com/rpattn/fieldmap/internal/transforms"
)

// CombineFieldsRule resolves each input with its own chain and substitutes
// the values into a "{0} {1}" template. The first failing input fails the
// whole rule.
type CombineFieldsRule struct {
	base
	inputs []transforms.InputField
}

func NewCombineFields(template string, inputs []transforms.InputField, opts ...Option) (*CombineFieldsRule, error) {
	if template == "" {
		return nil, domain.ConfigError("CombineFields requires a template")
	}
	if len(inputs) == 0 {
		return nil, domain.ConfigError("CombineFields requires at least one input")
	}
	r := &CombineFieldsRule{base: newBase(KindCombineFields, opts), inputs: transforms.CloneInputs(inputs)}
	r.detail = template
	return r, nil
}

func (r *CombineFieldsRule) Evaluate(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.run(ctx, rc, func(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
		values, failed := transforms.ResolveInputs(ctx, rc, r.inputs)
		if failed != nil {
			return domain.NewResult(rc, nil, r.targetType).WithFailure(failed.ErrorKind(), failed.ErrorMessage())
		}
		return domain.NewResult(rc, transforms.FillTemplate(r.detail, values), r.targetType)
	})
}

func (r *CombineFieldsRule) Resolve(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.Evaluate(ctx, rc)
}

func (r *CombineFieldsRule) Inputs() []transforms.InputField {
	return transforms.CloneInputs(r.inputs)
}

func (r *CombineFieldsRule) IsEmpty() bool { return len(r.inputs) == 0 }

func (r *CombineFieldsRule) Spec() domain.RuleSpec {
	spec := r.spec()
	for _, input := range r.inputs {
		spec.Inputs = append(spec.Inputs, input.Spec())
	}
	return spec
}

func (r *CombineFieldsRule) Clone() Rule {
	return &CombineFieldsRule{base: r.cloneBase(), inputs: r.Inputs()}
}

func (r *CombineFieldsRule) CloneOperand() operations.Operand { return r.Clone() }
