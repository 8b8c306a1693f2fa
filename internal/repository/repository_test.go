package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/fieldmap/internal/domain"
)

func TestTableIdentifier(t *testing.T) {
	if got := tableIdentifier("orders").Sanitize(); got != `"orders"` {
		t.Fatalf("expected quoted table, got %s", got)
	}
	if got := tableIdentifier(" sales.orders ").Sanitize(); got != `"sales"."orders"` {
		t.Fatalf("expected schema qualified table, got %s", got)
	}
	if got := tableIdentifier(`bad"name`).Sanitize(); got != `"bad""name"` {
		t.Fatalf("expected embedded quote to be escaped, got %s", got)
	}
}

func TestFieldTypeForColumn(t *testing.T) {
	cases := map[string]domain.FieldType{
		"character varying":        domain.FieldTypeString,
		"uuid":                     domain.FieldTypeString,
		"timestamp with time zone": domain.FieldTypeTimestamp,
		"date":                     domain.FieldTypeTimestamp,
		"double precision":         domain.FieldTypeFloat,
		"numeric":                  domain.FieldTypeDecimal,
		"bigint":                   domain.FieldTypeInteger,
		"boolean":                  domain.FieldTypeBoolean,
		"jsonb":                    domain.FieldTypeJSON,
		"USER-DEFINED":             domain.FieldTypeString,
	}
	for dataType, expected := range cases {
		if got := fieldTypeForColumn(dataType); got != expected {
			t.Fatalf("expected %s for %q, got %s", expected, dataType, got)
		}
	}
}

func TestDecodeRowKeepsNumberPrecision(t *testing.T) {
	values, err := decodeRow([]byte(`{"price": 12.345678901234567890, "name": "bolt", "tags": null}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	price, ok := values["price"].(json.Number)
	if !ok || price.String() != "12.345678901234567890" {
		t.Fatalf("expected json.Number with full precision, got %#v", values["price"])
	}
	if _, ok := values["tags"]; !ok {
		t.Fatalf("expected null column to be present")
	}

	if _, err := decodeRow([]byte(`[1,2]`)); err == nil {
		t.Fatalf("expected non-object payload to be rejected")
	}
}

func TestLookupQuery(t *testing.T) {
	got := lookupQuery(domain.LookupSpec{Table: "ref.countries", KeyColumn: "Code", ValueColumn: "Name"})
	expected := `SELECT "Code"::text, to_jsonb("Name") FROM "ref"."countries" WHERE "Code"::text = ANY($1)`
	if got != expected {
		t.Fatalf("unexpected lookup query:\n got %s\nwant %s", got, expected)
	}
}

func TestRunLogRows(t *testing.T) {
	row := 7
	runID := uuid.New()
	rows := runLogRows([]domain.RunLogEntry{
		{RunID: runID, MappingName: "m", TargetField: "age", RowNumber: &row, ErrorKind: domain.ErrorKindConversion, ErrorMessage: "bad"},
		{RunID: runID, MappingName: "m", TargetField: "name"},
	})
	if len(rows) != 2 || len(rows[0]) != len(runLogColumns) {
		t.Fatalf("unexpected copy rows: %v", rows)
	}
	if rows[0][0] == uuid.Nil {
		t.Fatalf("expected a generated id")
	}
	if rows[0][4] != int32(7) || rows[1][4] != nil {
		t.Fatalf("unexpected row numbers: %v %v", rows[0][4], rows[1][4])
	}
	if rows[0][5] != "conversion" {
		t.Fatalf("expected error kind text, got %v", rows[0][5])
	}
}

func TestDecodeDefinition(t *testing.T) {
	def := domain.MappingDefinition{ID: uuid.New(), Name: "people"}
	target := []byte(`{"name":"people","fields":[{"name":"full_name","type":"string"}]}`)
	fields := []byte(`[{"targetField":"full_name","rule":{"type":"Copy","sourceField":"Name"}}]`)

	decoded, err := decodeDefinition(def, nil, target, fields)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Target.Name != "people" || len(decoded.Fields) != 1 {
		t.Fatalf("unexpected definition: %+v", decoded)
	}
	if decoded.Fields[0].Rule.SourceField != "Name" {
		t.Fatalf("expected rule spec to survive, got %+v", decoded.Fields[0].Rule)
	}

	if _, err := decodeDefinition(def, nil, []byte(`{`), fields); err == nil {
		t.Fatalf("expected malformed target to fail")
	}
}

func TestNotFound(t *testing.T) {
	if !errors.Is(notFound(pgx.ErrNoRows), ErrNotFound) {
		t.Fatalf("expected pgx.ErrNoRows to map to ErrNotFound")
	}
	wrapped := fmt.Errorf("boom")
	if notFound(wrapped) != wrapped {
		t.Fatalf("expected other errors to pass through")
	}
}
