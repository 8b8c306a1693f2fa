package rules

import (
	"context"
	"fmt"

	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/operations"
)

// Gate is the conjunction of a rule's conditions. An empty gate passes.
type Gate struct {
	ops []operations.Operation
}

func NewGate(ops ...operations.Operation) Gate {
	return Gate{ops: append([]operations.Operation(nil), ops...)}
}

// Evaluate checks the conditions in order and stops at the first that does
// not hold. An operation error fails the gate with that error.
func (g Gate) Evaluate(ctx context.Context, rc domain.RowContext) (bool, error) {
	for i, op := range g.ops {
		ok, err := op.Evaluate(ctx, rc)
		if err != nil {
			return false, wrapConditionError(i, op, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func wrapConditionError(index int, op operations.Operation, err error) error {
	kind := domain.KindOf(err)
	return &domain.EvaluationError{
		Kind:    kind,
		Message: fmt.Sprintf("condition %d (%s): %s", index, op.Type(), err.Error()),
	}
}

func (g Gate) Clone() Gate {
	if g.ops == nil {
		return Gate{}
	}
	cloned := make([]operations.Operation, len(g.ops))
	for i, op := range g.ops {
		cloned[i] = op.Clone()
	}
	return Gate{ops: cloned}
}

func (g Gate) Specs() []domain.ConditionSpec {
	if len(g.ops) == 0 {
		return nil
	}
	specs := make([]domain.ConditionSpec, len(g.ops))
	for i, op := range g.ops {
		specs[i] = op.Spec()
	}
	return specs
}
