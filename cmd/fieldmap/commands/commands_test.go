package commands

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/repository"
)

const ordersDefinition = `
name: orders
target:
  name: orders_out
  fields:
    - {name: reference, type: string, required: true}
    - {name: quantity, type: integer}
    - {name: country, type: string}
fields:
  - targetField: reference
    rule:
      type: CombineFields
      detail: "{0}-{1}"
      inputs:
        - field: Prefix
          transformations: [{type: ToUpper}]
        - field: Number
  - targetField: quantity
    rule: {type: Copy, sourceField: Qty}
  - targetField: country
    rule:
      type: Lookup
      sourceField: Country
      lookup: {table: countries, keyColumn: Code, valueColumn: Name}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCmd("test")
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestMapCommandWritesCSV(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	def := writeFile(t, dir, "orders.yaml", ordersDefinition)
	input := writeFile(t, dir, "orders.csv", "Prefix,Number,Qty,Country\ninv,001,3,FR\npo,002,many,DE\n")
	countries := writeFile(t, dir, "countries.csv", "Code,Name\nFR,France\nDE,Germany\n")
	output := filepath.Join(dir, "out.csv")

	err := runRoot(t, "map", def, input, "-o", output, "--lookup", "countries="+countries, "--log-level", "error")
	require.NoError(t, err)

	file, err := os.Open(output)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"reference", "quantity", "country", "_errors"}, rows[0])
	assert.Equal(t, []string{"INV-001", "3", "France", ""}, rows[1])
	assert.Equal(t, "PO-002", rows[2][0])
	assert.Contains(t, rows[2][3], "quantity")
}

func TestMapCommandFailOnErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	def := writeFile(t, dir, "orders.yaml", ordersDefinition)
	input := writeFile(t, dir, "orders.csv", "Prefix,Number,Qty,Country\npo,002,many,DE\n")
	countries := writeFile(t, dir, "countries.csv", "Code,Name\nDE,Germany\n")

	err := runRoot(t, "map", def, input, "-o", filepath.Join(dir, "out.json"),
		"--lookup", "countries="+countries, "--fail-on-errors", "--log-level", "error")
	require.ErrorIs(t, err, ErrRowsFailed)
	assert.FileExists(t, filepath.Join(dir, "out.json"))
}

func TestMapCommandArguments(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	def := writeFile(t, dir, "orders.yaml", ordersDefinition)

	assert.Error(t, runRoot(t, "map", def, "--log-level", "error"))
	assert.Error(t, runRoot(t, "map", filepath.Join(dir, "missing.yaml"), "x.csv", "--log-level", "error"))
	assert.Error(t, runRoot(t, "map", def, "orders.csv", "--lookup", "countries", "--log-level", "error"))
}

func TestParseFieldFlags(t *testing.T) {
	descriptors, err := parseFieldFlags([]string{"Price=20", "Region=EU", "Price=35"})
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, "Price", descriptors[0].FieldName)
	assert.Equal(t, []any{"20", "35"}, descriptors[0].ValueSet)
	assert.Equal(t, domain.FieldTypeString, descriptors[1].FieldType)

	_, err = parseFieldFlags([]string{"=5"})
	assert.Error(t, err)
}

func TestLoadLookupFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "countries.csv", "Code,Name\nFR,France\n")

	memory, err := loadLookupFiles([]string{"countries=" + path})
	require.NoError(t, err)
	values, err := memory.LookupValues(t.Context(), domain.LookupSpec{Table: "countries", KeyColumn: "Code", ValueColumn: "Name"}, []string{"FR", "XX"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"FR": "France"}, values)

	_, err = loadLookupFiles([]string{"countries=" + filepath.Join(dir, "missing.csv")})
	assert.Error(t, err)
}

type memoryMappings struct {
	byName  map[string]domain.MappingDefinition
	created int
	updated int
}

func (m *memoryMappings) Create(_ context.Context, def domain.MappingDefinition) (domain.MappingDefinition, error) {
	m.created++
	m.byName[def.Name] = def
	return def, nil
}

func (m *memoryMappings) GetByID(context.Context, uuid.UUID) (domain.MappingDefinition, error) {
	return domain.MappingDefinition{}, repository.ErrNotFound
}

func (m *memoryMappings) GetByName(_ context.Context, name string) (domain.MappingDefinition, error) {
	def, ok := m.byName[name]
	if !ok {
		return domain.MappingDefinition{}, fmt.Errorf("mapping %s: %w", name, repository.ErrNotFound)
	}
	return def, nil
}

func (m *memoryMappings) List(context.Context) ([]domain.MappingDefinition, error) {
	return nil, nil
}

func (m *memoryMappings) Update(_ context.Context, def domain.MappingDefinition) (domain.MappingDefinition, error) {
	m.updated++
	m.byName[def.Name] = def
	return def, nil
}

func (m *memoryMappings) Delete(context.Context, uuid.UUID) error { return nil }

func TestSaveDefinitionCreatesThenReplaces(t *testing.T) {
	ctx := t.Context()
	mappings := &memoryMappings{byName: map[string]domain.MappingDefinition{}}
	def := domain.MappingDefinition{Name: "orders", Description: "v1"}

	first, err := saveDefinition(ctx, mappings, def)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, 1, mappings.created)

	def.Description = "v2"
	second, err := saveDefinition(ctx, mappings, def)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "v2", second.Description)
	assert.Equal(t, 1, mappings.updated)
}
