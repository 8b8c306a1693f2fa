package operations

import (
	"context"
	"strings"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

// Membership tests the left value against a list. The list comes from the
// right operand (a comma separated string or a collection) followed by any
// explicit value operands.
type Membership struct {
	base
}

func newMembership(kind Type) *Membership {
	return &Membership{base: base{kind: kind}}
}

func (m *Membership) Configure(operands Operands) error {
	if operands.Right == nil && len(operands.Values) == 0 {
		return domain.ConfigError("%s requires a right operand or a value list", m.kind)
	}
	return m.store(operands, "left")
}

func (m *Membership) Evaluate(ctx context.Context, rc domain.RowContext) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}
	value, err := resolve(ctx, rc, m.operands.Left, "left")
	if err != nil {
		return false, err
	}
	candidates, err := m.candidates(ctx, rc)
	if err != nil {
		return false, err
	}

	found := false
	for _, candidate := range candidates {
		if compare.Equal(value, candidate) {
			found = true
			break
		}
	}
	if m.kind == TypeNotIn {
		return !found, nil
	}
	return found, nil
}

func (m *Membership) candidates(ctx context.Context, rc domain.RowContext) ([]any, error) {
	var out []any
	if m.operands.Right != nil {
		right, err := resolve(ctx, rc, m.operands.Right, "right")
		if err != nil {
			return nil, err
		}
		out = append(out, expandList(right)...)
	}
	for _, operand := range m.operands.Values {
		value, err := resolve(ctx, rc, operand, "value")
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func expandList(value any) []any {
	if value == nil {
		return nil
	}
	if elements, ok := compare.Elements(value); ok {
		return elements
	}
	if !compare.IsString(value) {
		return []any{value}
	}
	var out []any
	for _, part := range strings.Split(compare.ToString(value), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (m *Membership) Clone() Operation {
	return &Membership{base: m.cloneBase()}
}
