package mapper

import (
	"fmt"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/rules"
	schemavalidator "github.com/rpattn/fieldmap/internal/schema/validator"
)

// Plan is a compiled mapping definition. Rules are built once and shared by
// every row the plan maps.
type Plan struct {
	definition domain.MappingDefinition
	target     *domain.TableDefinition
	fields     []compiledField
}

type compiledField struct {
	target domain.FieldDefinition
	rule   rules.Rule
}

// Definition returns the definition the plan was compiled from.
func (p *Plan) Definition() domain.MappingDefinition { return p.definition }

// Target returns the target table rows are mapped onto.
func (p *Plan) Target() domain.TableDefinition { return *p.target }

// Compile validates a mapping definition and builds the rule for every mapped
// target field. Target fields without a mapping fall back to their declared
// default.
func (e *Executor) Compile(def domain.MappingDefinition) (*Plan, error) {
	if err := schemavalidator.ValidateTable(def.Target); err != nil {
		return nil, domain.ConfigError("target table: %v", err)
	}
	if len(def.Source.Fields) > 0 {
		if err := schemavalidator.ValidateFields(def.Source.Fields); err != nil {
			return nil, domain.ConfigError("source table: %v", err)
		}
	}
	if err := schemavalidator.ValidateMappings(def.Target, def.Fields); err != nil {
		return nil, domain.ConfigError("%v", err)
	}

	target := def.Target.Clone()
	plan := &Plan{definition: def, target: &target}
	builder := rules.NewBuilder(append([]rules.BuilderOption{rules.WithTable(plan.target)}, e.builderOpts...)...)

	for _, field := range target.Fields {
		mapping, ok := def.FieldMappingFor(field.Name)
		if !ok {
			rule, err := defaultRule(field)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			if rule != nil {
				plan.fields = append(plan.fields, compiledField{target: field, rule: rule})
			}
			continue
		}

		spec := mapping.Rule
		if spec.TargetType == "" {
			spec.TargetType = field.Type
		}
		rule, err := builder.Build(spec)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		plan.fields = append(plan.fields, compiledField{target: field, rule: rule})
	}
	return plan, nil
}

func defaultRule(field domain.FieldDefinition) (rules.Rule, error) {
	if field.Default == "" {
		return nil, nil
	}
	value, err := compare.Convert(field.Default, field.Type)
	if err != nil {
		return nil, domain.ConfigError("default %q: %v", field.Default, err)
	}
	return rules.NewStatic(value, rules.Target(field.Type)), nil
}
