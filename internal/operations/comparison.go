package operations

import (
	"context"
	"fmt"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

// Comparison covers equality and ordering between a left and right operand.
type Comparison struct {
	base
}

func newComparison(kind Type) *Comparison {
	return &Comparison{base: base{kind: kind}}
}

func (c *Comparison) Configure(operands Operands) error {
	return c.store(operands, "left", "right")
}

func (c *Comparison) Evaluate(ctx context.Context, rc domain.RowContext) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	left, right, err := resolvePair(ctx, rc, c.operands)
	if err != nil {
		return false, err
	}

	switch c.kind {
	case TypeEquals:
		return compare.Equal(left, right), nil
	case TypeNotEqual:
		return !compare.Equal(left, right), nil
	}

	cmp, ok := compare.Order(left, right)
	if !ok {
		return false, nil
	}
	switch c.kind {
	case TypeGreaterThan:
		return cmp > 0, nil
	case TypeGreaterThanOrEqual:
		return cmp >= 0, nil
	case TypeLessThan:
		return cmp < 0, nil
	case TypeLessThanOrEqual:
		return cmp <= 0, nil
	default:
		return false, fmt.Errorf("unsupported comparison %s", c.kind)
	}
}

func (c *Comparison) Clone() Operation {
	return &Comparison{base: c.cloneBase()}
}

// TextMatch covers containment and prefix/suffix checks.
type TextMatch struct {
	base
}

func newTextMatch(kind Type) *TextMatch {
	return &TextMatch{base: base{kind: kind}}
}

func (t *TextMatch) Configure(operands Operands) error {
	return t.store(operands, "left", "right")
}

func (t *TextMatch) Evaluate(ctx context.Context, rc domain.RowContext) (bool, error) {
	if err := t.ready(); err != nil {
		return false, err
	}
	left, right, err := resolvePair(ctx, rc, t.operands)
	if err != nil {
		return false, err
	}

	switch t.kind {
	case TypeContains:
		return compare.Contains(left, right), nil
	case TypeNotContains:
		// null is neither containing nor not containing
		if left == nil || right == nil {
			return false, nil
		}
		return !compare.Contains(left, right), nil
	case TypeStartsWith:
		return compare.StartsWith(left, right), nil
	case TypeEndsWith:
		return compare.EndsWith(left, right), nil
	default:
		return false, fmt.Errorf("unsupported text match %s", t.kind)
	}
}

func (t *TextMatch) Clone() Operation {
	return &TextMatch{base: t.cloneBase()}
}
