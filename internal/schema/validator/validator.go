package validator

import (
	"fmt"
	"strings"

	"github.com/rpattn/fieldmap/internal/domain"
)

// ValidateTable ensures a table definition can be used as a mapping source or
// target: it must be named, and its fields must carry unique names and
// declarable types.
func ValidateTable(table domain.TableDefinition) error {
	if strings.TrimSpace(table.Name) == "" {
		return fmt.Errorf("table name is required")
	}
	return ValidateFields(table.Fields)
}

// ValidateFields checks field names are present and unique (case-insensitive)
// and that every declared type is supported.
func ValidateFields(fields []domain.FieldDefinition) error {
	seen := make(map[string]string, len(fields))
	for i, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		key := strings.ToLower(name)
		if previous, ok := seen[key]; ok {
			return fmt.Errorf("field %s duplicates field %s", field.Name, previous)
		}
		seen[key] = field.Name

		if !field.Type.IsDeclarable() {
			return fmt.Errorf("field %s cannot use type %q", field.Name, field.Type)
		}
	}
	return nil
}

// ValidateMappings checks that every mapping targets a declared field of the
// target table and that no field is mapped twice.
func ValidateMappings(target domain.TableDefinition, mappings []domain.FieldMapping) error {
	mapped := make(map[string]struct{}, len(mappings))
	for _, mapping := range mappings {
		field, ok := target.FieldByName(mapping.TargetField)
		if !ok {
			return fmt.Errorf("mapping targets unknown field %s of table %s", mapping.TargetField, target.Name)
		}
		if _, dup := mapped[field.Name]; dup {
			return fmt.Errorf("field %s is mapped more than once", field.Name)
		}
		mapped[field.Name] = struct{}{}
	}
	return nil
}
