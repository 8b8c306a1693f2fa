package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/fieldmap/internal/domain"
)

// LookupRepository resolves lookup keys against reference tables. It
// satisfies lookup.Source.
type LookupRepository struct {
	db querier
}

func NewLookupRepository(db querier) *LookupRepository {
	return &LookupRepository{db: db}
}

// LookupValues fetches the value column for every key in one query. Keys are
// compared as text; the first matching row wins.
func (r *LookupRepository) LookupValues(ctx context.Context, table domain.LookupSpec, keys []string) (map[string]any, error) {
	if len(keys) == 0 {
		return map[string]any{}, nil
	}
	rows, err := r.db.Query(ctx, lookupQuery(table), keys)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", table.Table, err)
	}
	defer rows.Close()

	out := make(map[string]any, len(keys))
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s lookup row: %w", table.Table, err)
		}
		if _, seen := out[key]; seen {
			continue
		}
		value, err := decodeJSON(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s lookup value: %w", table.Table, err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", table.Table, err)
	}
	return out, nil
}

func lookupQuery(table domain.LookupSpec) string {
	key := pgx.Identifier{table.KeyColumn}.Sanitize()
	value := pgx.Identifier{table.ValueColumn}.Sanitize()
	return fmt.Sprintf(
		`SELECT %[1]s::text, to_jsonb(%[2]s) FROM %[3]s WHERE %[1]s::text = ANY($1)`,
		key, value, tableIdentifier(table.Table).Sanitize(),
	)
}
