package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/fieldmap/internal/domain"
)

var runLogColumns = []string{"id", "run_id", "mapping_name", "target_field", "row_number", "error_kind", "error_message", "created_at"}

type runLogRepository struct {
	db querier
}

// NewRunLogRepository wires a run log repository backed by pgx.
func NewRunLogRepository(db querier) RunLogRepository {
	return &runLogRepository{db: db}
}

// Record bulk inserts entries with COPY.
func (r *runLogRepository) Record(ctx context.Context, entries []domain.RunLogEntry) error {
	if r.db == nil {
		return fmt.Errorf("run log repository not initialized")
	}
	if len(entries) == 0 {
		return nil
	}
	_, err := r.db.CopyFrom(ctx, pgx.Identifier{"mapping_run_logs"}, runLogColumns, pgx.CopyFromRows(runLogRows(entries)))
	if err != nil {
		return fmt.Errorf("failed to record run log: %w", err)
	}
	return nil
}

func (r *runLogRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunLogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, run_id, mapping_name, target_field, row_number, error_kind, error_message, created_at
		 FROM mapping_run_logs
		 WHERE run_id = $1
		 ORDER BY row_number NULLS FIRST, target_field`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return collectRunLogs(rows)
}

func (r *runLogRepository) ListByMapping(ctx context.Context, mappingName string, limit int, offset int) ([]domain.RunLogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, run_id, mapping_name, target_field, row_number, error_kind, error_message, created_at
		 FROM mapping_run_logs
		 WHERE mapping_name = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		mappingName, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return collectRunLogs(rows)
}

func collectRunLogs(rows pgx.Rows) ([]domain.RunLogEntry, error) {
	defer rows.Close()

	var entries []domain.RunLogEntry
	for rows.Next() {
		var entry domain.RunLogEntry
		var kind string
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.MappingName, &entry.TargetField, &entry.RowNumber, &kind, &entry.ErrorMessage, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		entry.ErrorKind = domain.ErrorKind(kind)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return entries, nil
}

func runLogRows(entries []domain.RunLogEntry) [][]any {
	rows := make([][]any, len(entries))
	for i, entry := range entries {
		id := entry.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		createdAt := entry.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		var rowNumber any
		if entry.RowNumber != nil {
			rowNumber = int32(*entry.RowNumber)
		}
		rows[i] = []any{id, entry.RunID, entry.MappingName, entry.TargetField, rowNumber, string(entry.ErrorKind), entry.ErrorMessage, createdAt}
	}
	return rows
}
