package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestRecordValueMatching(t *testing.T) {
	record := NewRecord("people.csv", 1, map[string]any{"Name": "Ada", "name": "exact"})

	if value, ok := record.Value("name"); !ok || value != "exact" {
		t.Fatalf("expected exact match to win, got %v (%v)", value, ok)
	}
	// "Name" sorts before "name", so it wins for every other spelling.
	for i := 0; i < 20; i++ {
		if value, ok := record.Value("NAME"); !ok || value != "Ada" {
			t.Fatalf("expected deterministic case-insensitive match, got %v (%v)", value, ok)
		}
	}
	if _, ok := record.Value("age"); ok {
		t.Fatalf("expected missing field to report false")
	}
}

func TestRecordIsCopyOnWrite(t *testing.T) {
	values := map[string]any{"a": 1}
	record := NewRecord("src", 1, values)
	values["a"] = 2

	updated := record.WithValue("a", 3).WithoutValue("missing")
	if record.Values["a"] != 1 {
		t.Fatalf("expected record to be isolated from its input map, got %v", record.Values["a"])
	}
	if updated.Values["a"] != 3 || updated.ID != record.ID {
		t.Fatalf("expected updated copy with same ID, got %+v", updated)
	}
}

func TestRowContextLookup(t *testing.T) {
	table := &TableDefinition{Name: "orders", Fields: []FieldDefinition{{Name: "qty", Type: FieldTypeInteger}}}
	rc := RowContext{
		Row:    NewRecord("src", 4, map[string]any{"Qty": "3"}),
		Fields: []FieldDescriptor{{FieldName: "Region", ValueSet: []any{"EU", "UK"}}},
		Table:  table,
	}

	value, fieldType, ok := rc.Lookup("Qty")
	if !ok || value != "3" || fieldType != FieldTypeInteger {
		t.Fatalf("expected declared type from table, got %v %s %v", value, fieldType, ok)
	}
	value, _, ok = rc.Lookup("region")
	if !ok {
		t.Fatalf("expected descriptor fallback")
	}
	if set, isSet := value.([]any); !isSet || len(set) != 2 {
		t.Fatalf("expected the whole value set, got %v", value)
	}
	if number, ok := rc.RowNumber(); !ok || number != 4 {
		t.Fatalf("expected row number 4, got %d (%v)", number, ok)
	}
	if _, ok := (RowContext{}).RowNumber(); ok {
		t.Fatalf("expected no row number without a record")
	}
}

func TestResultFailureIsNeverSilent(t *testing.T) {
	result := NewResult(RowContext{}, "x", FieldTypeString).WithFailure(ErrorKindNone, "")
	if result.ErrorKind() != ErrorKindEvaluation || result.ErrorMessage() == "" {
		t.Fatalf("expected default kind and message, got %s %q", result.ErrorKind(), result.ErrorMessage())
	}

	skipped := Failure(RowContext{}, ErrorKindConditionsNotMet, "")
	if !skipped.Skipped() || !errors.Is(skipped.Err(), ErrConditionsNotMet) {
		t.Fatalf("expected skipped result matching its sentinel, got %v", skipped.Err())
	}
}

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("field price: %w", &ConversionError{SourceType: FieldTypeString, TargetType: FieldTypeInteger, Value: "x"})
	if KindOf(wrapped) != ErrorKindConversion || !errors.Is(wrapped, ErrConversion) {
		t.Fatalf("expected conversion kind through wrapping, got %s", KindOf(wrapped))
	}
	if !errors.Is(ConfigError("bad %s", "rule"), ErrConfiguration) {
		t.Fatalf("expected configuration sentinel")
	}
	if KindOf(errors.New("boom")) != ErrorKindEvaluation || KindOf(nil) != ErrorKindNone {
		t.Fatalf("unexpected fallback kinds")
	}
}

func TestMappedRowFailures(t *testing.T) {
	row := MappedRow{Fields: []FieldOutcome{
		{Field: "a", Value: 1},
		{Field: "b", Failed: true, Skipped: true},
		{Field: "c", Failed: true, ErrorKind: ErrorKindConversion, Error: "bad"},
	}}
	if failures := row.Failures(); len(failures) != 1 || failures[0].Field != "c" {
		t.Fatalf("expected only c to fail, got %+v", failures)
	}
	if values := row.Values(); len(values) != 1 || values["a"] != 1 {
		t.Fatalf("expected only successful values, got %v", values)
	}
}

func TestFieldMappingForPrefersExactName(t *testing.T) {
	def := NewMappingDefinition("people", TableDefinition{}, TableDefinition{}, []FieldMapping{
		{TargetField: "email"},
		{TargetField: "Name"},
		{TargetField: "name"},
	})
	if mapping, ok := def.FieldMappingFor("name"); !ok || mapping.TargetField != "name" {
		t.Fatalf("expected exact match, got %+v", mapping)
	}
	if mapping, ok := def.FieldMappingFor("EMAIL"); !ok || mapping.TargetField != "email" {
		t.Fatalf("expected case-insensitive match, got %+v", mapping)
	}
	if _, ok := def.FieldMappingFor("phone"); ok {
		t.Fatalf("expected no mapping for phone")
	}
}
