package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rpattn/fieldmap/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// MappingRepository defines the interface for mapping definition operations
type MappingRepository interface {
	Create(ctx context.Context, def domain.MappingDefinition) (domain.MappingDefinition, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.MappingDefinition, error)
	GetByName(ctx context.Context, name string) (domain.MappingDefinition, error)
	List(ctx context.Context) ([]domain.MappingDefinition, error)
	Update(ctx context.Context, def domain.MappingDefinition) (domain.MappingDefinition, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RecordRepository reads rows of arbitrary Postgres tables as records.
type RecordRepository interface {
	Describe(ctx context.Context, table string) (domain.TableDefinition, error)
	List(ctx context.Context, table string, limit int, offset int) ([]domain.Record, int, error)
}

// RunLogRepository persists and lists field failures of mapping runs.
type RunLogRepository interface {
	Record(ctx context.Context, entries []domain.RunLogEntry) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunLogEntry, error)
	ListByMapping(ctx context.Context, mappingName string, limit int, offset int) ([]domain.RunLogEntry, error)
}

// querier is the subset of pgxpool.Pool and pgx.Tx the repositories use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
