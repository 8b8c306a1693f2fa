package validator

import (
	"strings"
	"testing"

	"github.com/rpattn/fieldmap/internal/domain"
)

func TestValidateTable_AcceptsDeclaredTypes(t *testing.T) {
	table := domain.TableDefinition{
		Name: "orders",
		Fields: []domain.FieldDefinition{
			{Name: "id", Type: domain.FieldTypeString},
			{Name: "total", Type: domain.FieldTypeDecimal},
			{Name: "placed_at", Type: domain.FieldTypeTimestamp},
		},
	}

	if err := ValidateTable(table); err != nil {
		t.Fatalf("expected validation to pass, got error: %v", err)
	}
}

func TestValidateTable_RequiresName(t *testing.T) {
	if err := ValidateTable(domain.TableDefinition{}); err == nil {
		t.Fatalf("expected error for unnamed table")
	}
}

func TestValidateFields_RejectsDuplicateNames(t *testing.T) {
	fields := []domain.FieldDefinition{
		{Name: "Email", Type: domain.FieldTypeString},
		{Name: "email", Type: domain.FieldTypeString},
	}

	err := ValidateFields(fields)
	if err == nil {
		t.Fatalf("expected duplicate field error")
	}
	if !strings.Contains(err.Error(), "duplicates") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestValidateFields_RejectsCollectionType(t *testing.T) {
	fields := []domain.FieldDefinition{
		{Name: "tags", Type: domain.FieldTypeCollection},
	}

	if err := ValidateFields(fields); err == nil {
		t.Fatalf("expected collection type to be rejected")
	}
}

func TestValidateFields_RejectsBlankName(t *testing.T) {
	fields := []domain.FieldDefinition{{Name: "  ", Type: domain.FieldTypeString}}

	if err := ValidateFields(fields); err == nil {
		t.Fatalf("expected blank name to be rejected")
	}
}

func TestValidateMappings(t *testing.T) {
	target := domain.TableDefinition{
		Name:   "people",
		Fields: []domain.FieldDefinition{{Name: "FullName", Type: domain.FieldTypeString}},
	}

	if err := ValidateMappings(target, []domain.FieldMapping{{TargetField: "fullname"}}); err != nil {
		t.Fatalf("expected case-insensitive target match, got %v", err)
	}
	if err := ValidateMappings(target, []domain.FieldMapping{{TargetField: "Age"}}); err == nil {
		t.Fatalf("expected unknown target field error")
	}
	if err := ValidateMappings(target, []domain.FieldMapping{{TargetField: "FullName"}, {TargetField: "FullName"}}); err == nil {
		t.Fatalf("expected duplicate mapping error")
	}
}
