package rules

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/operations"
)

// Generators understood by CustomFieldless rules.
const (
	GenerateUUID      = "uuid"
	GenerateNow       = "now"
	GenerateToday     = "today"
	GenerateEmpty     = "empty"
	GenerateNull      = "null"
	GenerateRowNumber = "row_number"
	GenerateTableName = "table_name"
)

var generators = map[string]struct{}{
	GenerateUUID: {}, GenerateNow: {}, GenerateToday: {}, GenerateEmpty: {},
	GenerateNull: {}, GenerateRowNumber: {}, GenerateTableName: {},
}

// FieldlessRule generates a value that does not come from a source field.
type FieldlessRule struct {
	base
	now func() time.Time
}

func NewFieldless(generator string, now func() time.Time, opts ...Option) (*FieldlessRule, error) {
	key := strings.ToLower(strings.TrimSpace(generator))
	if _, ok := generators[key]; !ok {
		return nil, domain.ConfigError("unknown fieldless generator %q", generator)
	}
	if now == nil {
		now = time.Now
	}
	r := &FieldlessRule{base: newBase(KindCustomFieldless, opts), now: now}
	r.detail = key
	return r, nil
}

func (r *FieldlessRule) Evaluate(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.run(ctx, rc, func(_ context.Context, rc domain.RowContext) domain.TransformationResult {
		switch r.detail {
		case GenerateUUID:
			return domain.NewResult(rc, uuid.NewString(), r.targetType)
		case GenerateNow:
			return domain.NewResult(rc, r.now().UTC(), r.targetType)
		case GenerateToday:
			return domain.NewResult(rc, r.now().UTC().Truncate(24*time.Hour), r.targetType)
		case GenerateEmpty:
			return domain.NewResult(rc, "", r.targetType)
		case GenerateNull:
			return domain.NewResult(rc, nil, r.targetType)
		case GenerateRowNumber:
			number, ok := rc.RowNumber()
			if !ok {
				return domain.Failure(rc, domain.ErrorKindMissingField, "row number is not available")
			}
			return domain.NewResult(rc, number, r.targetType)
		case GenerateTableName:
			if rc.Table == nil || rc.Table.Name == "" {
				return domain.Failure(rc, domain.ErrorKindMissingField, "table definition is not available")
			}
			return domain.NewResult(rc, rc.Table.Name, r.targetType)
		default:
			return domain.Failure(rc, domain.ErrorKindConfiguration, "unknown fieldless generator "+r.detail)
		}
	})
}

func (r *FieldlessRule) Resolve(ctx context.Context, rc domain.RowContext) domain.TransformationResult {
	return r.Evaluate(ctx, rc)
}

func (r *FieldlessRule) IsEmpty() bool { return r.detail == "" }

func (r *FieldlessRule) Spec() domain.RuleSpec { return r.spec() }

func (r *FieldlessRule) Clone() Rule {
	return &FieldlessRule{base: r.cloneBase(), now: r.now}
}

func (r *FieldlessRule) CloneOperand() operations.Operand { return r.Clone() }
