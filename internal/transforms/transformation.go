// Package transforms implements value transformations and the fail-fast
// chains they are applied in.
package transforms

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/fieldmap/internal/domain"
)

// Kind identifies a value transformation.
type Kind string

const (
	KindCalculate     Kind = "Calculate"
	KindSubstring     Kind = "Substring"
	KindCombineFields Kind = "CombineFields"
	KindTrim          Kind = "Trim"
	KindToUpper       Kind = "ToUpper"
	KindToLower       Kind = "ToLower"
	KindReplace       Kind = "Replace"
	KindRound         Kind = "Round"
	KindFormatDate    Kind = "FormatDate"
	KindDefaultValue  Kind = "DefaultValue"
	KindConvert       Kind = "Convert"
)

var kinds = []Kind{
	KindCalculate, KindSubstring, KindCombineFields, KindTrim, KindToUpper, KindToLower,
	KindReplace, KindRound, KindFormatDate, KindDefaultValue, KindConvert,
}

// ParseKind matches a transformation name case-insensitively, ignoring
// separators.
func ParseKind(raw string) (Kind, bool) {
	key := normalizeName(raw)
	for _, kind := range kinds {
		if normalizeName(string(kind)) == key {
			return kind, true
		}
	}
	return "", false
}

func normalizeName(raw string) string {
	replacer := strings.NewReplacer("_", "", "-", "", " ", "")
	return replacer.Replace(strings.ToLower(strings.TrimSpace(raw)))
}

// Transformation maps one result to the next. A failed input is returned
// unchanged.
type Transformation interface {
	Kind() Kind
	Apply(ctx context.Context, in domain.TransformationResult) domain.TransformationResult
	Clone() Transformation
	Spec() domain.TransformationSpec
}

// Env carries the collaborators transformations are built with.
type Env struct {
	Evaluator Evaluator
}

func (e Env) evaluator() Evaluator {
	if e.Evaluator == nil {
		return NewExprEvaluator()
	}
	return e.Evaluator
}

// Chain applies transformations in order and stops at the first failure.
type Chain []Transformation

func (c Chain) Apply(ctx context.Context, in domain.TransformationResult) domain.TransformationResult {
	current := in
	for _, step := range c {
		if current.WasFailure() {
			return current
		}
		if err := ctx.Err(); err != nil {
			return current.WithError(err)
		}
		current = step.Apply(ctx, current)
	}
	return current
}

// Clone deep-copies every step.
func (c Chain) Clone() Chain {
	if c == nil {
		return nil
	}
	cloned := make(Chain, len(c))
	for i, step := range c {
		cloned[i] = step.Clone()
	}
	return cloned
}

func (c Chain) Specs() []domain.TransformationSpec {
	if len(c) == 0 {
		return nil
	}
	specs := make([]domain.TransformationSpec, len(c))
	for i, step := range c {
		specs[i] = step.Spec()
	}
	return specs
}

// Build constructs a transformation from its plain-data form. Setup mistakes
// are reported as configuration errors.
func Build(spec domain.TransformationSpec, env Env) (Transformation, error) {
	kind, ok := ParseKind(spec.Type)
	if !ok {
		return nil, domain.ConfigError("unknown transformation %q", spec.Type)
	}
	inputs, err := BuildInputs(spec.Inputs, env)
	if err != nil {
		return nil, fmt.Errorf("%s inputs: %w", kind, err)
	}

	var step Transformation
	switch kind {
	case KindCalculate:
		step, err = wrap(NewCalculate(spec.Detail, spec.DecimalPlaces, inputs, env.evaluator()))
	case KindSubstring:
		step, err = wrap(NewSubstring(spec.Detail))
	case KindCombineFields:
		step, err = wrap(NewCombine(spec.Detail, inputs))
	case KindTrim, KindToUpper, KindToLower:
		step, err = wrap(newText(kind, nil))
	case KindReplace:
		step, err = wrap(newText(kind, spec.Arguments))
	case KindRound:
		step, err = wrap(NewRound(spec.DecimalPlaces))
	case KindFormatDate:
		step = NewFormatDate(spec.Detail)
	case KindDefaultValue:
		step = NewDefaultValue(spec.Detail)
	case KindConvert:
		step, err = wrap(NewConvert(spec.Detail))
	default:
		err = domain.ConfigError("unsupported transformation %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return step, nil
}

// wrap keeps a failed constructor from leaking a typed nil interface.
func wrap[T Transformation](step T, err error) (Transformation, error) {
	if err != nil {
		return nil, err
	}
	return step, nil
}

// BuildChain builds every step of a chain in order.
func BuildChain(specs []domain.TransformationSpec, env Env) (Chain, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	chain := make(Chain, 0, len(specs))
	for i, spec := range specs {
		step, err := Build(spec, env)
		if err != nil {
			return nil, fmt.Errorf("transformation %d: %w", i, err)
		}
		chain = append(chain, step)
	}
	return chain, nil
}

func stepName(kind Kind, detail string) string {
	if detail == "" {
		return string(kind)
	}
	return fmt.Sprintf("%s(%s)", kind, detail)
}

// fail records the failing step in the log and marks the result failed.
func fail(in domain.TransformationResult, step string, err error) domain.TransformationResult {
	return in.WithLogEntry(step).WithError(err)
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
