package rules

import (
	"fmt"
	"time"

	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/operations"
	"github.com/rpattn/fieldmap/internal/transforms"
)

// Builder turns plain-data rule specs into rules. One builder serves one
// pipeline: its expression evaluator is shared by the rules it builds.
type Builder struct {
	registry *operations.Registry
	env      transforms.Env
	table    *domain.TableDefinition
	now      func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRegistry resolves condition operations from registry instead of the
// built-in set.
func WithRegistry(registry *operations.Registry) BuilderOption {
	return func(b *Builder) {
		b.registry = registry
	}
}

// WithEvaluator injects the expression evaluator used by Calculate steps.
func WithEvaluator(evaluator transforms.Evaluator) BuilderOption {
	return func(b *Builder) {
		b.env.Evaluator = evaluator
	}
}

// WithTable sets the table definition built rules belong to.
func WithTable(table *domain.TableDefinition) BuilderOption {
	return func(b *Builder) {
		b.table = table
	}
}

// WithClock sets the clock used by the now and today generators.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	if b.registry == nil {
		b.registry = operations.Default()
	}
	if b.env.Evaluator == nil {
		b.env.Evaluator = transforms.NewExprEvaluator()
	}
	return b
}

// Build constructs a rule, its conditions and its transformations.
// Configuration mistakes anywhere in the tree are returned as errors.
func (b *Builder) Build(spec domain.RuleSpec) (Rule, error) {
	kind, ok := ParseKind(spec.Type)
	if !ok {
		return nil, domain.ConfigError("unknown rule type %q", spec.Type)
	}
	if spec.TargetType != "" && !spec.TargetType.IsDeclarable() {
		return nil, domain.ConfigError("%s rule target type %q is not supported", kind, spec.TargetType)
	}

	gate, err := b.buildGate(spec.Conditions)
	if err != nil {
		return nil, fmt.Errorf("%s rule: %w", kind, err)
	}
	chain, err := transforms.BuildChain(spec.Transformations, b.env)
	if err != nil {
		return nil, fmt.Errorf("%s rule: %w", kind, err)
	}
	opts := []Option{
		Target(spec.TargetType),
		Then(chain...),
		InTable(b.table),
		func(rb *base) { rb.gate = gate },
	}

	var rule Rule
	switch kind {
	case KindCopy:
		rule, err = asRule(NewCopy(spec.SourceField, opts...))
	case KindFieldAccess:
		rule, err = asRule(NewFieldAccess(spec.SourceField, opts...))
	case KindConstant:
		rule, err = asRule(NewConstant(spec.Value, spec.Detail, opts...))
	case KindStatic:
		static := NewStatic(spec.Value, opts...)
		static.detail = spec.Detail
		rule = static
	case KindIgnore:
		rule = NewIgnore(opts...)
	case KindCombineFields:
		var inputs []transforms.InputField
		inputs, err = transforms.BuildInputs(spec.Inputs, b.env)
		if err == nil {
			rule, err = asRule(NewCombineFields(spec.Detail, inputs, opts...))
		}
	case KindCustomFieldless:
		rule, err = asRule(NewFieldless(spec.Detail, b.now, opts...))
	case KindLookup:
		if spec.Lookup == nil {
			err = domain.ConfigError("Lookup rule requires a lookup table")
		} else {
			rule, err = asRule(NewLookup(spec.SourceField, *spec.Lookup, opts...))
		}
	default:
		err = domain.ConfigError("unsupported rule type %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// BuildCondition constructs one comparison operation with its operand rules.
func (b *Builder) BuildCondition(spec domain.ConditionSpec) (operations.Operation, error) {
	op := b.registry.Resolve(spec.Operation)
	if op == nil {
		return nil, domain.ConfigError("unknown comparison operation %q", spec.Operation)
	}

	var operands operations.Operands
	var err error
	if operands.Left, err = b.buildOperand(spec.Left, "left"); err != nil {
		return nil, err
	}
	if operands.Right, err = b.buildOperand(spec.Right, "right"); err != nil {
		return nil, err
	}
	if operands.Low, err = b.buildOperand(spec.Low, "low"); err != nil {
		return nil, err
	}
	if operands.High, err = b.buildOperand(spec.High, "high"); err != nil {
		return nil, err
	}
	for i := range spec.Values {
		value, err := b.buildOperand(&spec.Values[i], fmt.Sprintf("value %d", i))
		if err != nil {
			return nil, err
		}
		operands.Values = append(operands.Values, value)
	}

	if err := op.Configure(operands); err != nil {
		return nil, err
	}
	return op, nil
}

func (b *Builder) buildOperand(spec *domain.RuleSpec, name string) (operations.Operand, error) {
	if spec == nil {
		return nil, nil
	}
	rule, err := b.Build(*spec)
	if err != nil {
		return nil, fmt.Errorf("%s operand: %w", name, err)
	}
	return rule, nil
}

func (b *Builder) buildGate(specs []domain.ConditionSpec) (Gate, error) {
	if len(specs) == 0 {
		return Gate{}, nil
	}
	ops := make([]operations.Operation, 0, len(specs))
	for i, spec := range specs {
		op, err := b.BuildCondition(spec)
		if err != nil {
			return Gate{}, fmt.Errorf("condition %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return NewGate(ops...), nil
}

// asRule keeps a failed constructor from leaking a typed nil interface.
func asRule[T Rule](rule T, err error) (Rule, error) {
	if err != nil {
		return nil, err
	}
	return rule, nil
}
