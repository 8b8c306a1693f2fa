package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/fieldmap/internal/domain"
)

// recordRepository reads rows of existing tables through to_jsonb so that
// any table can serve as a mapping source.
type recordRepository struct {
	db querier
}

// NewRecordRepository creates a repository over arbitrary tables
func NewRecordRepository(db querier) RecordRepository {
	return &recordRepository{db: db}
}

// Describe builds a table definition from the information schema.
func (r *recordRepository) Describe(ctx context.Context, table string) (domain.TableDefinition, error) {
	ident := tableIdentifier(table)
	schema, name := "public", ident[len(ident)-1]
	if len(ident) > 1 {
		schema = ident[0]
	}

	rows, err := r.db.Query(ctx,
		`SELECT column_name, data_type, is_nullable = 'NO'
		 FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`,
		schema, name,
	)
	if err != nil {
		return domain.TableDefinition{}, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	def := domain.TableDefinition{Name: table}
	for rows.Next() {
		var column, dataType string
		var required bool
		if err := rows.Scan(&column, &dataType, &required); err != nil {
			return domain.TableDefinition{}, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		def.Fields = append(def.Fields, domain.FieldDefinition{
			Name:     column,
			Type:     fieldTypeForColumn(dataType),
			Required: required,
		})
	}
	if err := rows.Err(); err != nil {
		return domain.TableDefinition{}, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	if len(def.Fields) == 0 {
		return domain.TableDefinition{}, fmt.Errorf("failed to describe table %s: %w", table, ErrNotFound)
	}
	return def, nil
}

// List returns one page of rows and the table's total row count. A limit of
// zero returns every row.
func (r *recordRepository) List(ctx context.Context, table string, limit int, offset int) ([]domain.Record, int, error) {
	if offset < 0 {
		offset = 0
	}
	var pageLimit any
	if limit > 0 {
		pageLimit = limit
	}
	ident := tableIdentifier(table).Sanitize()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM `+ident).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}

	rows, err := r.db.Query(ctx, `SELECT to_jsonb(t) FROM `+ident+` t LIMIT $1 OFFSET $2`, pageLimit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rows of %s: %w", table, err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, 0, fmt.Errorf("failed to scan row of %s: %w", table, err)
		}
		values, err := decodeRow(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode row of %s: %w", table, err)
		}
		records = append(records, domain.NewRecord(table, offset+len(records)+1, values))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list rows of %s: %w", table, err)
	}
	return records, total, nil
}

// tableIdentifier splits an optionally schema-qualified table name.
func tableIdentifier(table string) pgx.Identifier {
	parts := strings.SplitN(strings.TrimSpace(table), ".", 2)
	return pgx.Identifier(parts)
}

// fieldTypeForColumn maps an information_schema data type onto a field type.
func fieldTypeForColumn(dataType string) domain.FieldType {
	dataType = strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case strings.HasPrefix(dataType, "character"), dataType == "uuid", dataType == "citext":
		return domain.FieldTypeString
	case strings.HasPrefix(dataType, "timestamp"), dataType == "date", strings.HasPrefix(dataType, "time"):
		return domain.FieldTypeTimestamp
	case dataType == "double precision":
		return domain.FieldTypeFloat
	}
	if fieldType, ok := domain.ParseFieldType(dataType); ok {
		return fieldType
	}
	return domain.FieldTypeString
}

// decodeJSON keeps numbers as json.Number so that decimal precision survives.
func decodeJSON(payload []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func decodeRow(payload []byte) (map[string]any, error) {
	value, err := decodeJSON(payload)
	if err != nil {
		return nil, err
	}
	values, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a json object, got %T", value)
	}
	return values, nil
}
