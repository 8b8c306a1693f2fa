package transforms

import (
	"context"
	"fmt"

	"github.com/rpattn/fieldmap/internal/domain"
)

// InputField is a named field or a literal constant with its own chain.
type InputField struct {
	Field    string
	Constant *string
	Chain    Chain
}

// NewFieldInput reads a field from the row.
func NewFieldInput(field string, chain Chain) InputField {
	return InputField{Field: field, Chain: chain}
}

// NewConstantInput supplies a literal value.
func NewConstantInput(value string, chain Chain) InputField {
	return InputField{Constant: &value, Chain: chain}
}

// Resolve produces the input's value for one row, after its own chain.
func (f InputField) Resolve(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	var start domain.TransformationResult
	switch {
	case f.Constant != nil:
		start = domain.NewResult(rc, *f.Constant, "")
	case f.Field != "":
		value, _, ok := rc.Lookup(f.Field)
		if !ok {
			return domain.Failure(rc, domain.ErrorKindMissingField, fmt.Sprintf("field not found: %s", f.Field))
		}
		start = domain.NewResult(rc, value, "")
	default:
		return domain.Failure(rc, domain.ErrorKindConfiguration, "input has neither a field nor a constant")
	}
	return f.Chain.Apply(ctx, start)
}

func (f InputField) Clone() InputField {
	cloned := InputField{Field: f.Field, Chain: f.Chain.Clone()}
	if f.Constant != nil {
		value := *f.Constant
		cloned.Constant = &value
	}
	return cloned
}

func (f InputField) Spec() domain.InputSpec {
	spec := domain.InputSpec{Field: f.Field, Transformations: f.Chain.Specs()}
	if f.Constant != nil {
		value := *f.Constant
		spec.Constant = &value
	}
	return spec
}

// BuildInput constructs an input from its plain-data form.
func BuildInput(spec domain.InputSpec, env Env) (InputField, error) {
	if spec.Field == "" && spec.Constant == nil {
		return InputField{}, domain.ConfigError("input requires a field or a constant")
	}
	chain, err := BuildChain(spec.Transformations, env)
	if err != nil {
		return InputField{}, err
	}
	input := InputField{Field: spec.Field, Chain: chain}
	if spec.Constant != nil {
		value := *spec.Constant
		input.Constant = &value
		input.Field = ""
	}
	return input, nil
}

func BuildInputs(specs []domain.InputSpec, env Env) ([]InputField, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	inputs := make([]InputField, len(specs))
	for i, spec := range specs {
		input, err := BuildInput(spec, env)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		inputs[i] = input
	}
	return inputs, nil
}

// ResolveInputs resolves every input in order and stops at the first failure,
// which is returned as the second result.
func ResolveInputs(ctx context.Context, rc domain.RowContext, inputs []InputField) ([]any, *domain.TransformationResult) {
	values := make([]any, 0, len(inputs))
	for _, input := range inputs {
		result := input.Resolve(ctx, rc)
		if result.WasFailure() {
			return nil, &result
		}
		values = append(values, result.CurrentValue())
	}
	return values, nil
}

// CloneInputs deep-copies inputs and their chains.
func CloneInputs(inputs []InputField) []InputField {
	if inputs == nil {
		return nil
	}
	cloned := make([]InputField, len(inputs))
	for i, input := range inputs {
		cloned[i] = input.Clone()
	}
	return cloned
}

func inputSpecs(inputs []InputField) []domain.InputSpec {
	if len(inputs) == 0 {
		return nil
	}
	specs := make([]domain.InputSpec, len(inputs))
	for i, input := range inputs {
		specs[i] = input.Spec()
	}
	return specs
}
