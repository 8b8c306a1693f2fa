package rules

import (
	"context"
	"fmt"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/lookup"
	"github.com/rpattn/fieldmap/internal/operations"
)

// LookupRule replaces a source key with the matching value of a reference
// table. The loaders must be attached to the evaluation context.
type LookupRule struct {
	base
	reference domain.LookupSpec
}

func NewLookup(field string, table domain.LookupSpec, opts ...Option) (*LookupRule, error) {
	if field == "" {
		return nil, domain.ConfigError("Lookup requires a source field")
	}
	if table.Table == "" || table.KeyColumn == "" || table.ValueColumn == "" {
		return nil, domain.ConfigError("Lookup requires a table, key column and value column")
	}
	r := &LookupRule{base: newBase(KindLookup, opts), reference: table}
	r.sourceField = field
	return r, nil
}

func (r *LookupRule) Evaluate(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.run(ctx, rc, func(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
		key, _, ok := rc.Lookup(r.sourceField)
		if !ok {
			return missingField(rc, r.sourceField)
		}
		if key == nil {
			return domain.NewResult(rc, nil, r.targetType)
		}

		loaders := lookup.FromContext(ctx)
		if loaders == nil {
			return domain.Failure(rc, domain.ErrorKindConfiguration, "no lookup loaders attached to the evaluation context")
		}
		keyText := compare.ToString(key)
		value, found, err := loaders.Load(ctx, r.reference, keyText)
		if err != nil {
			return domain.NewResult(rc, key, r.targetType).WithError(err)
		}
		if !found {
			return domain.Failure(rc, domain.ErrorKindMissingField,
				fmt.Sprintf("no %s row with %s = %s", r.reference.Table, r.reference.KeyColumn, keyText))
		}
		return domain.NewResult(rc, key, r.targetType).WithValue(value, "Lookup("+r.reference.Table+")")
	})
}

func (r *LookupRule) Resolve(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.Evaluate(ctx, rc)
}

func (r *LookupRule) IsEmpty() bool { return r.sourceField == "" }

func (r *LookupRule) Spec() domain.RuleSpec {
	spec := r.spec()
	table := r.reference
	spec.Lookup = &table
	return spec
}

func (r *LookupRule) Clone() Rule {
	return &LookupRule{base: r.cloneBase(), reference: r.reference}
}

func (r *LookupRule) CloneOperand() operations.Operand { return r.Clone() }
