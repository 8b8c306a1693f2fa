// Package operations holds the comparison operations a rule gate is built
// from. Every operation resolves its operands against a row and applies the
// shared comparator; evaluation reports failures as errors and never panics.
package operations

import (
	"context"
	"fmt"

	"github.com/rpattn/fieldmap/internal/domain"
)

// Type identifies a comparison operation.
type Type string

const (
	TypeEquals                Type = "Equals"
	TypeNotEqual              Type = "NotEqual"
	TypeGreaterThan           Type = "GreaterThan"
	TypeGreaterThanOrEqual    Type = "GreaterThanOrEqual"
	TypeLessThan              Type = "LessThan"
	TypeLessThanOrEqual       Type = "LessThanOrEqual"
	TypeBetween               Type = "Between"
	TypeNotBetween            Type = "NotBetween"
	TypeContains              Type = "Contains"
	TypeNotContains           Type = "NotContains"
	TypeStartsWith            Type = "StartsWith"
	TypeEndsWith              Type = "EndsWith"
	TypeIn                    Type = "In"
	TypeNotIn                 Type = "NotIn"
	TypeIsNull                Type = "IsNull"
	TypeIsNotNull             Type = "IsNotNull"
	TypeIsNullOrEmpty         Type = "IsNullOrEmpty"
	TypeIsNotNullOrEmpty      Type = "IsNotNullOrEmpty"
	TypeIsNullOrWhiteSpace    Type = "IsNullOrWhiteSpace"
	TypeIsNotNullOrWhiteSpace Type = "IsNotNullOrWhiteSpace"
	TypeIsTrue                Type = "IsTrue"
	TypeIsFalse               Type = "IsFalse"
	TypeRegexMatch            Type = "RegexMatch"
)

// Operand is anything that resolves to a value for one row. Mapping rules
// implement it so they can be nested inside comparisons.
type Operand interface {
	Resolve(ctx context.Context, rc domain.RowContext) domain.TransformationResult
	Spec() domain.RuleSpec
	CloneOperand() Operand
}

// Operands is the configuration of an operation. Which members are required
// depends on the operation family.
type Operands struct {
	Left   Operand
	Right  Operand
	Low    Operand
	High   Operand
	Values []Operand
}

// Clone deep-copies every configured operand.
func (o Operands) Clone() Operands {
	cloned := Operands{
		Left:  cloneOperand(o.Left),
		Right: cloneOperand(o.Right),
		Low:   cloneOperand(o.Low),
		High:  cloneOperand(o.High),
	}
	if o.Values != nil {
		cloned.Values = make([]Operand, len(o.Values))
		for i, value := range o.Values {
			cloned.Values[i] = cloneOperand(value)
		}
	}
	return cloned
}

func cloneOperand(operand Operand) Operand {
	if operand == nil {
		return nil
	}
	return operand.CloneOperand()
}

// Operation is a configured comparison evaluated once per row.
type Operation interface {
	Type() Type
	// Configure validates and stores the operands. A missing required operand
	// is a configuration error.
	Configure(operands Operands) error
	Evaluate(ctx context.Context, rc domain.RowContext) (bool, error)
	Operands() Operands
	Clone() Operation
	Spec() domain.ConditionSpec
}

type base struct {
	kind       Type
	operands   Operands
	configured bool
}

func (b *base) Type() Type { return b.kind }

func (b *base) Operands() Operands { return b.operands.Clone() }

func (b *base) Spec() domain.ConditionSpec {
	spec := domain.ConditionSpec{
		Operation: string(b.kind),
		Left:      operandSpec(b.operands.Left),
		Right:     operandSpec(b.operands.Right),
		Low:       operandSpec(b.operands.Low),
		High:      operandSpec(b.operands.High),
	}
	for _, value := range b.operands.Values {
		if value == nil {
			continue
		}
		spec.Values = append(spec.Values, value.Spec())
	}
	return spec
}

func operandSpec(operand Operand) *domain.RuleSpec {
	if operand == nil {
		return nil
	}
	spec := operand.Spec()
	return &spec
}

func (b *base) store(operands Operands, required ...string) error {
	for _, name := range required {
		if operandByName(operands, name) == nil {
			return domain.ConfigError("%s requires a %s operand", b.kind, name)
		}
	}
	b.operands = operands.Clone()
	b.configured = true
	return nil
}

func (b *base) cloneBase() base {
	return base{kind: b.kind, operands: b.operands.Clone(), configured: b.configured}
}

func (b *base) ready() error {
	if !b.configured {
		return domain.ConfigError("%s operation is not configured", b.kind)
	}
	return nil
}

func operandByName(operands Operands, name string) Operand {
	switch name {
	case "left":
		return operands.Left
	case "right":
		return operands.Right
	case "low":
		return operands.Low
	case "high":
		return operands.High
	}
	return nil
}

// resolve evaluates one operand. A failed operand result becomes an
// OperandEvaluation error carrying the upstream message.
func resolve(ctx context.Context, rc domain.RowContext, operand Operand, name string) (any, error) {
	if operand == nil {
		return nil, domain.ConfigError("missing %s operand", name)
	}
	result := operand.Resolve(ctx, rc)
	if result.WasFailure() {
		return nil, &domain.EvaluationError{
			Kind:    domain.ErrorKindOperandEvaluation,
			Message: fmt.Sprintf("%s operand: %s", name, result.ErrorMessage()),
		}
	}
	return result.CurrentValue(), nil
}

func resolvePair(ctx context.Context, rc domain.RowContext, operands Operands) (any, any, error) {
	left, err := resolve(ctx, rc, operands.Left, "left")
	if err != nil {
		return nil, nil, err
	}
	right, err := resolve(ctx, rc, operands.Right, "right")
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}
