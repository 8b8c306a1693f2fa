package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/lookup"
	"github.com/rpattn/fieldmap/internal/operations"
	"github.com/rpattn/fieldmap/internal/transforms"
)

func row(values map[string]any) domain.RowContext {
	return domain.ForRecord(domain.NewRecord("people.csv", 7, values), nil)
}

func condition(t *testing.T, kind operations.Type, operands operations.Operands) operations.Operation {
	t.Helper()
	op, err := operations.Default().New(string(kind), operands)
	require.NoError(t, err)
	return op
}

func field(t *testing.T, name string) operations.Operand {
	t.Helper()
	rule, err := NewFieldAccess(name)
	require.NoError(t, err)
	return rule
}

func TestCopyConvertsToTargetType(t *testing.T) {
	rule, err := NewCopy("Age", Target(domain.FieldTypeInteger))
	require.NoError(t, err)

	result := rule.Evaluate(context.Background(), row(map[string]any{"Age": "42"}))
	require.False(t, result.WasFailure(), result.ErrorMessage())
	assert.Equal(t, int64(42), result.CurrentValue())
	assert.Equal(t, "42", result.OriginalValue())
	assert.Equal(t, domain.FieldTypeInteger, result.TargetFieldType())
}

func TestCopyFailures(t *testing.T) {
	rule, err := NewCopy("Age", Target(domain.FieldTypeInteger))
	require.NoError(t, err)

	missing := rule.Evaluate(context.Background(), row(map[string]any{"Name": "Ann"}))
	require.True(t, missing.WasFailure())
	assert.Equal(t, domain.ErrorKindMissingField, missing.ErrorKind())

	collection := rule.Evaluate(context.Background(), row(map[string]any{"Age": []any{1, 2}}))
	require.True(t, collection.WasFailure())
	assert.Equal(t, domain.ErrorKindConversion, collection.ErrorKind())

	unconvertible := rule.Evaluate(context.Background(), row(map[string]any{"Age": "forty"}))
	require.True(t, unconvertible.WasFailure())
	assert.Equal(t, domain.ErrorKindConversion, unconvertible.ErrorKind())
	assert.Contains(t, unconvertible.ErrorMessage(), "forty")

	_, err = NewCopy("")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCopyRunsChainBeforeConversion(t *testing.T) {
	rule, err := NewCopy("Amount",
		Then(transforms.NewTrim(), transforms.NewDefaultValue("0")),
		Target(domain.FieldTypeDecimal))
	require.NoError(t, err)

	result := rule.Evaluate(context.Background(), row(map[string]any{"Amount": "   "}))
	require.False(t, result.WasFailure(), result.ErrorMessage())
	assert.Equal(t, "0", result.CurrentValue().(interface{ String() string }).String())
	assert.Equal(t, []string{"Trim", "DefaultValue(0)"}, result.AppliedTransformations())
}

func TestFieldAccessFallsBackToDescriptors(t *testing.T) {
	rule, err := NewFieldAccess("Tags")
	require.NoError(t, err)

	rc := domain.ForDescriptors([]domain.FieldDescriptor{
		{FieldName: "Tags", FieldType: domain.FieldTypeString, ValueSet: []any{"a", "b"}},
	}, nil)
	result := rule.Evaluate(context.Background(), rc)
	require.False(t, result.WasFailure())
	assert.Equal(t, []any{"a", "b"}, result.CurrentValue())

	absent := rule.Evaluate(context.Background(), domain.RowContext{})
	require.True(t, absent.WasFailure())
	assert.Equal(t, domain.ErrorKindMissingField, absent.ErrorKind())
}

func TestConstantAndStatic(t *testing.T) {
	constant, err := NewConstant(nil, "2024-01-31", Target(domain.FieldTypeTimestamp))
	require.NoError(t, err)
	result := constant.Evaluate(context.Background(), row(nil))
	require.False(t, result.WasFailure())
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), result.CurrentValue())

	bad, err := NewConstant("abc", "", Target(domain.FieldTypeBoolean))
	require.NoError(t, err)
	failed := bad.Evaluate(context.Background(), row(nil))
	require.True(t, failed.WasFailure())
	assert.Equal(t, domain.ErrorKindConversion, failed.ErrorKind())

	_, err = NewConstant(nil, "")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	static := NewStatic(nil)
	assert.True(t, static.IsEmpty())
	assert.Nil(t, static.Resolve(context.Background(), row(nil)).CurrentValue())
}

func TestIgnoreAlwaysSucceeds(t *testing.T) {
	rule := NewIgnore(Target(domain.FieldTypeInteger))
	result := rule.Evaluate(context.Background(), row(map[string]any{"x": 1}))
	assert.False(t, result.WasFailure())
	assert.Nil(t, result.CurrentValue())
	assert.True(t, rule.IsEmpty())
}

func TestCombineFields(t *testing.T) {
	rule, err := NewCombineFields("{0} {1}", []transforms.InputField{
		transforms.NewFieldInput("First", nil),
		transforms.NewFieldInput("Last", nil),
	})
	require.NoError(t, err)

	result := rule.Evaluate(context.Background(), row(map[string]any{"First": "John", "Last": "Doe"}))
	require.False(t, result.WasFailure())
	assert.Equal(t, "John Doe", result.CurrentValue())
}

func TestCombineFieldsKeepsItsOwnInputs(t *testing.T) {
	inputs := []transforms.InputField{
		transforms.NewFieldInput("First", nil),
		transforms.NewFieldInput("Last", nil),
	}
	rule, err := NewCombineFields("{0} {1}", inputs)
	require.NoError(t, err)

	inputs[0] = transforms.NewFieldInput("Last", nil)
	inputs[1] = transforms.NewFieldInput("First", nil)

	result := rule.Evaluate(context.Background(), row(map[string]any{"First": "John", "Last": "Doe"}))
	require.False(t, result.WasFailure())
	assert.Equal(t, "John Doe", result.CurrentValue())
}

func TestCombineFieldsFailsOnFirstInputError(t *testing.T) {
	failing, err := transforms.NewConvert("integer")
	require.NoError(t, err)

	rule, err := NewCombineFields("{0} {1}", []transforms.InputField{
		transforms.NewFieldInput("First", transforms.Chain{failing}),
		transforms.NewFieldInput("Last", nil),
	})
	require.NoError(t, err)

	result := rule.Evaluate(context.Background(), row(map[string]any{"First": "John", "Last": "Doe"}))
	require.True(t, result.WasFailure())
	assert.Equal(t, domain.ErrorKindConversion, result.ErrorKind())
	assert.Contains(t, result.ErrorMessage(), "John")
	assert.NotEqual(t, " Doe", result.CurrentValue())
	assert.Nil(t, result.CurrentValue())
}

func TestGateSkipsRule(t *testing.T) {
	rule, err := NewCopy("Name", When(
		condition(t, operations.TypeEquals, operations.Operands{Left: field(t, "Status"), Right: NewStatic("active")}),
	))
	require.NoError(t, err)

	passed := rule.Evaluate(context.Background(), row(map[string]any{"Name": "Ann", "Status": "ACTIVE"}))
	require.False(t, passed.WasFailure())
	assert.Equal(t, "Ann", passed.CurrentValue())

	skipped := rule.Evaluate(context.Background(), row(map[string]any{"Name": "Ann", "Status": "inactive"}))
	require.True(t, skipped.WasFailure())
	assert.True(t, skipped.Skipped())
	assert.Equal(t, domain.ErrorKindConditionsNotMet, skipped.ErrorKind())
	assert.Equal(t, "conditions not met", skipped.ErrorMessage())
}

type countingOperation struct {
	operations.Operation
	calls *int
}

func (c countingOperation) Evaluate(ctx context.Context, rc domain.RowContext) (bool, error) {
	*c.calls++
	return c.Operation.Evaluate(ctx, rc)
}

func TestGateShortCircuitsAndPropagatesErrors(t *testing.T) {
	var calls int
	first := condition(t, operations.TypeIsTrue, operations.Operands{Left: NewStatic(false)})
	second := countingOperation{
		Operation: condition(t, operations.TypeIsTrue, operations.Operands{Left: NewStatic(true)}),
		calls:     &calls,
	}
	ok, err := NewGate(first, second).Evaluate(context.Background(), row(nil))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, calls)

	rule, err := NewConstant("x", "", When(
		condition(t, operations.TypeEquals, operations.Operands{Left: field(t, "Missing"), Right: NewStatic(1)}),
	))
	require.NoError(t, err)
	result := rule.Evaluate(context.Background(), row(map[string]any{}))
	require.True(t, result.WasFailure())
	assert.False(t, result.Skipped())
	assert.Equal(t, domain.ErrorKindOperandEvaluation, result.ErrorKind())
	assert.Contains(t, result.ErrorMessage(), "field not found: Missing")
}

func TestFieldlessGenerators(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 5, 6, 13, 14, 15, 0, time.UTC) }
	table := &domain.TableDefinition{Name: "customers"}

	cases := map[string]any{
		GenerateNow:       clock(),
		GenerateToday:     time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
		GenerateEmpty:     "",
		GenerateNull:      nil,
		GenerateRowNumber: 7,
		GenerateTableName: "customers",
	}
	for generator, want := range cases {
		rule, err := NewFieldless(generator, clock, InTable(table))
		require.NoError(t, err)
		result := rule.Evaluate(context.Background(), row(nil))
		require.False(t, result.WasFailure(), generator)
		assert.Equal(t, want, result.CurrentValue(), generator)
	}

	id, err := NewFieldless("UUID", nil)
	require.NoError(t, err)
	value := id.Evaluate(context.Background(), row(nil)).CurrentValue()
	assert.Len(t, value, 36)

	rowless, err := NewFieldless(GenerateRowNumber, nil)
	require.NoError(t, err)
	assert.True(t, rowless.Evaluate(context.Background(), domain.RowContext{}).WasFailure())

	_, err = NewFieldless("random", nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestLookupRule(t *testing.T) {
	source := lookup.NewMemorySource()
	source.AddTable("countries", []map[string]any{{"code": "DE", "name": "Germany"}})
	table := domain.LookupSpec{Table: "countries", KeyColumn: "code", ValueColumn: "name"}

	rule, err := NewLookup("Country", table)
	require.NoError(t, err)

	withoutLoaders := rule.Evaluate(context.Background(), row(map[string]any{"Country": "DE"}))
	require.True(t, withoutLoaders.WasFailure())
	assert.Equal(t, domain.ErrorKindConfiguration, withoutLoaders.ErrorKind())

	ctx := lookup.WithLoaders(context.Background(), lookup.NewLoaders(source, lookup.WithWait(time.Millisecond)))
	result := rule.Evaluate(ctx, row(map[string]any{"Country": "DE"}))
	require.False(t, result.WasFailure(), result.ErrorMessage())
	assert.Equal(t, "Germany", result.CurrentValue())
	assert.Equal(t, "DE", result.OriginalValue())

	missing := rule.Evaluate(ctx, row(map[string]any{"Country": "FR"}))
	require.True(t, missing.WasFailure())
	assert.Equal(t, domain.ErrorKindMissingField, missing.ErrorKind())

	_, err = NewLookup("Country", domain.LookupSpec{Table: "countries"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCloneEvaluatesAlike(t *testing.T) {
	combine, err := NewCombineFields("{0}-{1}", []transforms.InputField{
		transforms.NewFieldInput("A", transforms.Chain{transforms.NewToUpper()}),
		transforms.NewConstantInput("x", nil),
	}, When(condition(t, operations.TypeIsNotNull, operations.Operands{Left: field(t, "A")})))
	require.NoError(t, err)
	copyRule, err := NewCopy("B", Target(domain.FieldTypeFloat))
	require.NoError(t, err)

	rc := row(map[string]any{"A": "abc", "B": "1.5"})
	for _, rule := range []Rule{combine, copyRule, NewStatic(3), NewIgnore()} {
		clone := rule.Clone()
		want := rule.Evaluate(context.Background(), rc)
		got := clone.Evaluate(context.Background(), rc)
		assert.Equal(t, want.CurrentValue(), got.CurrentValue(), rule.Kind())
		assert.Equal(t, want.WasFailure(), got.WasFailure(), rule.Kind())
		assert.Equal(t, rule.Spec(), clone.Spec(), rule.Kind())
	}
}

func TestCloneSharesTableDefinition(t *testing.T) {
	table := &domain.TableDefinition{Name: "target"}
	rule, err := NewCopy("A", InTable(table))
	require.NoError(t, err)

	clone := rule.Clone().(*CopyRule)
	assert.Same(t, table, clone.table)
}
