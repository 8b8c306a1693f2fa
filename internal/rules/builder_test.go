package rules

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/fieldmap/internal/domain"
)

const discountYAML = `
type: Copy
sourceField: Price
targetType: decimal
conditions:
  - operation: greater_than
    left: {type: FieldAccess, sourceField: Quantity}
    right: {type: Static, value: 10}
  - operation: In
    left: {type: FieldAccess, sourceField: Region}
    right: {type: Static, value: "EU, UK"}
transformations:
  - type: Calculate
    detail: "{value} * 0.9"
    decimalPlaces: 2
`

func TestBuildFromYAML(t *testing.T) {
	var spec domain.RuleSpec
	require.NoError(t, yaml.Unmarshal([]byte(discountYAML), &spec))

	rule, err := NewBuilder().Build(spec)
	require.NoError(t, err)
	assert.Equal(t, KindCopy, rule.Kind())

	result := rule.Evaluate(context.Background(), row(map[string]any{"Price": "20", "Quantity": 12, "Region": "uk"}))
	require.False(t, result.WasFailure(), result.ErrorMessage())
	assert.Equal(t, "18", result.CurrentValue().(interface{ String() string }).String())

	skipped := rule.Evaluate(context.Background(), row(map[string]any{"Price": "20", "Quantity": 3, "Region": "uk"}))
	assert.True(t, skipped.Skipped())
}

func TestBuildRoundTripsThroughJSON(t *testing.T) {
	var spec domain.RuleSpec
	require.NoError(t, yaml.Unmarshal([]byte(discountYAML), &spec))
	rule, err := NewBuilder().Build(spec)
	require.NoError(t, err)

	encoded, err := json.Marshal(rule.Spec())
	require.NoError(t, err)
	var decoded domain.RuleSpec
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	rebuilt, err := NewBuilder().Build(decoded)
	require.NoError(t, err)

	rc := row(map[string]any{"Price": "50", "Quantity": 11, "Region": "EU"})
	want := rule.Evaluate(context.Background(), rc)
	got := rebuilt.Evaluate(context.Background(), rc)
	require.False(t, got.WasFailure(), got.ErrorMessage())
	assert.Equal(t, want.CurrentValue(), got.CurrentValue())
	require.Len(t, decoded.Conditions, 2)
	assert.Equal(t, "Region", decoded.Conditions[1].Left.SourceField)
}

func TestBuildCombineFieldsWithInputChains(t *testing.T) {
	dash := "-"
	rule, err := NewBuilder().Build(domain.RuleSpec{
		Type:   "combine_fields",
		Detail: "{0}{1}{2}",
		Inputs: []domain.InputSpec{
			{Field: "Code", Transformations: []domain.TransformationSpec{{Type: "ToUpper"}}},
			{Constant: &dash},
			{Field: "Number", Transformations: []domain.TransformationSpec{{Type: "Substring", Detail: "-3"}}},
		},
	})
	require.NoError(t, err)

	result := rule.Evaluate(context.Background(), row(map[string]any{"Code": "inv", "Number": "000123"}))
	require.False(t, result.WasFailure(), result.ErrorMessage())
	assert.Equal(t, "INV-123", result.CurrentValue())
}

func TestBuildRejectsMisconfiguration(t *testing.T) {
	cases := map[string]domain.RuleSpec{
		"unknown rule":        {Type: "Teleport"},
		"copy without field":  {Type: "Copy"},
		"bad target type":     {Type: "Copy", SourceField: "A", TargetType: "collection"},
		"unknown operation":   {Type: "Copy", SourceField: "A", Conditions: []domain.ConditionSpec{{Operation: "Resembles"}}},
		"missing operand":     {Type: "Copy", SourceField: "A", Conditions: []domain.ConditionSpec{{Operation: "Equals", Left: &domain.RuleSpec{Type: "FieldAccess", SourceField: "A"}}}},
		"bad nested operand":  {Type: "Copy", SourceField: "A", Conditions: []domain.ConditionSpec{{Operation: "IsNull", Left: &domain.RuleSpec{Type: "FieldAccess"}}}},
		"bad transformation":  {Type: "Copy", SourceField: "A", Transformations: []domain.TransformationSpec{{Type: "Substring", Detail: "x"}}},
		"combine w/o inputs":  {Type: "CombineFields", Detail: "{0}"},
		"lookup w/o table":    {Type: "Lookup", SourceField: "A"},
		"fieldless generator": {Type: "CustomFieldless", Detail: "dice"},
	}
	builder := NewBuilder()
	for name, spec := range cases {
		rule, err := builder.Build(spec)
		assert.Error(t, err, name)
		assert.ErrorIs(t, err, domain.ErrConfiguration, name)
		assert.Nil(t, rule, name)
	}
}

func TestBuilderTableBackReference(t *testing.T) {
	table := &domain.TableDefinition{Name: "orders"}
	rule, err := NewBuilder(WithTable(table)).Build(domain.RuleSpec{Type: "CustomFieldless", Detail: "table_name"})
	require.NoError(t, err)
	result := rule.Evaluate(context.Background(), domain.RowContext{})
	require.False(t, result.WasFailure(), result.ErrorMessage())
	assert.Equal(t, "orders", result.CurrentValue())
}
