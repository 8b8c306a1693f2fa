package operations

import (
	"context"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

// Range is an inclusive bounds check. Bounds supplied in the wrong order are
// swapped before comparing.
type Range struct {
	base
}

func newRange(kind Type) *Range {
	return &Range{base: base{kind: kind}}
}

func (r *Range) Configure(operands Operands) error {
	return r.store(operands, "left", "low", "high")
}

func (r *Range) Evaluate(ctx context.Context, rc domain.RowContext) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	value, err := resolve(ctx, rc, r.operands.Left, "left")
	if err != nil {
		return false, err
	}
	low, err := resolve(ctx, rc, r.operands.Low, "low")
	if err != nil {
		return false, err
	}
	high, err := resolve(ctx, rc, r.operands.High, "high")
	if err != nil {
		return false, err
	}

	inside, ok := within(value, low, high)
	if !ok {
		// null or unorderable values are neither inside nor outside
		return false, nil
	}
	if r.kind == TypeNotBetween {
		return !inside, nil
	}
	return inside, nil
}

func within(value, low, high any) (bool, bool) {
	if cmp, ok := compare.Order(low, high); ok && cmp > 0 {
		low, high = high, low
	}
	lower, ok := compare.Order(value, low)
	if !ok {
		return false, false
	}
	upper, ok := compare.Order(value, high)
	if !ok {
		return false, false
	}
	return lower >= 0 && upper <= 0, true
}

func (r *Range) Clone() Operation {
	return &Range{base: r.cloneBase()}
}
