package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/fieldmap/internal/domain"
)

const mappingColumns = `id, name, description, source_table, target_table, field_mappings, created_at, updated_at`

// mappingRepository implements MappingRepository interface
type mappingRepository struct {
	db querier
}

// NewMappingRepository creates a new mapping definition repository
func NewMappingRepository(db querier) MappingRepository {
	return &mappingRepository{db: db}
}

func (r *mappingRepository) Create(ctx context.Context, def domain.MappingDefinition) (domain.MappingDefinition, error) {
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	source, target, fields, err := encodeDefinition(def)
	if err != nil {
		return domain.MappingDefinition{}, err
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO mapping_definitions (id, name, description, source_table, target_table, field_mappings)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+mappingColumns,
		def.ID, def.Name, def.Description, source, target, fields,
	)
	created, err := scanDefinition(row)
	if err != nil {
		return domain.MappingDefinition{}, fmt.Errorf("failed to create mapping definition: %w", err)
	}
	return created, nil
}

// GetByID retrieves a mapping definition by ID
func (r *mappingRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.MappingDefinition, error) {
	row := r.db.QueryRow(ctx, `SELECT `+mappingColumns+` FROM mapping_definitions WHERE id = $1`, id)
	def, err := scanDefinition(row)
	if err != nil {
		return domain.MappingDefinition{}, fmt.Errorf("failed to get mapping definition: %w", notFound(err))
	}
	return def, nil
}

// GetByName retrieves a mapping definition by its unique name
func (r *mappingRepository) GetByName(ctx context.Context, name string) (domain.MappingDefinition, error) {
	row := r.db.QueryRow(ctx, `SELECT `+mappingColumns+` FROM mapping_definitions WHERE name = $1`, name)
	def, err := scanDefinition(row)
	if err != nil {
		return domain.MappingDefinition{}, fmt.Errorf("failed to get mapping definition %s: %w", name, notFound(err))
	}
	return def, nil
}

func (r *mappingRepository) List(ctx context.Context) ([]domain.MappingDefinition, error) {
	rows, err := r.db.Query(ctx, `SELECT `+mappingColumns+` FROM mapping_definitions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping definitions: %w", err)
	}
	defer rows.Close()

	var result []domain.MappingDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping definition: %w", err)
		}
		result = append(result, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list mapping definitions: %w", err)
	}
	return result, nil
}

func (r *mappingRepository) Update(ctx context.Context, def domain.MappingDefinition) (domain.MappingDefinition, error) {
	source, target, fields, err := encodeDefinition(def)
	if err != nil {
		return domain.MappingDefinition{}, err
	}

	row := r.db.QueryRow(ctx,
		`UPDATE mapping_definitions
		 SET name = $2, description = $3, source_table = $4, target_table = $5, field_mappings = $6, updated_at = $7
		 WHERE id = $1
		 RETURNING `+mappingColumns,
		def.ID, def.Name, def.Description, source, target, fields, time.Now().UTC(),
	)
	updated, err := scanDefinition(row)
	if err != nil {
		return domain.MappingDefinition{}, fmt.Errorf("failed to update mapping definition: %w", notFound(err))
	}
	return updated, nil
}

func (r *mappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM mapping_definitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mapping definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete mapping definition %s: %w", id, ErrNotFound)
	}
	return nil
}

func encodeDefinition(def domain.MappingDefinition) (source, target, fields []byte, err error) {
	if source, err = domain.TableDefinitionToJSON(def.Source); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode source table: %w", err)
	}
	if target, err = domain.TableDefinitionToJSON(def.Target); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode target table: %w", err)
	}
	if fields, err = domain.FieldMappingsToJSON(def.Fields); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode field mappings: %w", err)
	}
	return source, target, fields, nil
}

func scanDefinition(row pgx.Row) (domain.MappingDefinition, error) {
	var (
		def                    domain.MappingDefinition
		source, target, fields []byte
	)
	if err := row.Scan(&def.ID, &def.Name, &def.Description, &source, &target, &fields, &def.CreatedAt, &def.UpdatedAt); err != nil {
		return domain.MappingDefinition{}, err
	}
	return decodeDefinition(def, source, target, fields)
}

func decodeDefinition(def domain.MappingDefinition, source, target, fields []byte) (domain.MappingDefinition, error) {
	var err error
	if def.Source, err = domain.TableDefinitionFromJSON(source); err != nil {
		return domain.MappingDefinition{}, fmt.Errorf("failed to unmarshal source table for mapping %s: %w", def.Name, err)
	}
	if def.Target, err = domain.TableDefinitionFromJSON(target); err != nil {
		return domain.MappingDefinition{}, fmt.Errorf("failed to unmarshal target table for mapping %s: %w", def.Name, err)
	}
	if def.Fields, err = domain.FieldMappingsFromJSON(fields); err != nil {
		return domain.MappingDefinition{}, fmt.Errorf("failed to unmarshal field mappings for mapping %s: %w", def.Name, err)
	}
	return def, nil
}
