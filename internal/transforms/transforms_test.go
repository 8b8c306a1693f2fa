package transforms

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/fieldmap/internal/domain"
)

type countingStep struct {
	name  string
	calls *int
	fail  bool
}

func (s countingStep) Kind() Kind { return Kind(s.name) }

func (s countingStep) Apply(_ context.Context, in domain.TransformationResult) domain.TransformationResult {
	if in.WasFailure() {
		return in
	}
	*s.calls++
	if s.fail {
		return in.WithLogEntry(s.name).WithFailure(domain.ErrorKindEvaluation, s.name+" failed")
	}
	return in.WithValue(in.CurrentValue(), s.name)
}

func (s countingStep) Clone() Transformation { return s }

func (s countingStep) Spec() domain.TransformationSpec {
	return domain.TransformationSpec{Type: s.name}
}

func rowContext(values map[string]any) domain.RowContext {
	return domain.ForRecord(domain.NewRecord("test", 1, values), nil)
}

func apply(t *testing.T, step Transformation, value any) domain.TransformationResult {
	t.Helper()
	return step.Apply(context.Background(), domain.NewResult(domain.RowContext{}, value, ""))
}

func intPtr(v int) *int { return &v }

func TestChainStopsAtFirstFailure(t *testing.T) {
	var first, second, third int
	chain := Chain{
		countingStep{name: "first", calls: &first},
		countingStep{name: "second", calls: &second, fail: true},
		countingStep{name: "third", calls: &third},
	}

	result := chain.Apply(context.Background(), domain.NewResult(domain.RowContext{}, "x", ""))
	require.True(t, result.WasFailure())
	assert.Equal(t, "second failed", result.ErrorMessage())
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 0, third, "steps after a failure must not run")
	assert.Equal(t, []string{"first", "second"}, result.AppliedTransformations())
}

func TestChainHonoursCancellation(t *testing.T) {
	var calls int
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := Chain{countingStep{name: "step", calls: &calls}}.Apply(ctx, domain.NewResult(domain.RowContext{}, 1, ""))
	require.True(t, result.WasFailure())
	assert.Equal(t, 0, calls)
}

func TestCalculate(t *testing.T) {
	calc, err := NewCalculate("{0} * 2 + {1}", intPtr(2), []InputField{
		NewFieldInput("Price", nil),
		NewConstantInput("0.125", nil),
	}, nil)
	require.NoError(t, err)

	rc := rowContext(map[string]any{"Price": "10.5"})
	result := calc.Apply(context.Background(), domain.NewResult(rc, nil, ""))
	require.False(t, result.WasFailure(), result.ErrorMessage())
	assert.Equal(t, 21.13, result.CurrentValue())
	assert.Equal(t, []string{"Calculate({0} * 2 + {1})"}, result.AppliedTransformations())
}

func TestCalculateUsesCurrentValueWithoutInputs(t *testing.T) {
	calc, err := NewCalculate("{value} / 4 + {0} + {7}", intPtr(0), nil, nil)
	require.NoError(t, err)

	result := apply(t, calc, 10)
	require.False(t, result.WasFailure(), result.ErrorMessage())
	// 10/4 + 10 + 0 = 12.5, rounded half away from zero
	assert.Equal(t, int64(13), result.CurrentValue())
}

func TestCalculateNullsAndNegatives(t *testing.T) {
	calc, err := NewCalculate("{0} - {1}", nil, []InputField{
		NewConstantInput("-3", nil),
		NewFieldInput("Missing", nil),
	}, nil)
	require.NoError(t, err)

	result := calc.Apply(context.Background(), domain.NewResult(rowContext(map[string]any{"Missing": nil}), nil, ""))
	require.False(t, result.WasFailure(), result.ErrorMessage())
	assert.Equal(t, -3.0, result.CurrentValue())
}

func TestCalculateFailures(t *testing.T) {
	_, err := NewCalculate("({0} * 2", nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExpressionSyntax)

	nonNumeric, err := NewCalculate("{0} + 1", nil, nil, nil)
	require.NoError(t, err)
	result := apply(t, nonNumeric, "abc")
	require.True(t, result.WasFailure())
	assert.Equal(t, domain.ErrorKindConversion, result.ErrorKind())

	infinite, err := NewCalculate("{0} * 2", nil, nil, &fixedEvaluator{result: math.Inf(1)})
	require.NoError(t, err)
	result = apply(t, infinite, 1)
	require.True(t, result.WasFailure())
	assert.Equal(t, domain.ErrorKindEvaluation, result.ErrorKind())
	assert.Len(t, result.AppliedTransformations(), 1)
}

func TestCalculateDataErrorsAreEvaluationFailures(t *testing.T) {
	calc, err := NewCalculate("{0} % {1}", nil, []InputField{
		NewConstantInput("1", nil),
		NewConstantInput("0", nil),
	}, nil)
	require.NoError(t, err)

	result := calc.Apply(context.Background(), domain.NewResult(rowContext(nil), nil, ""))
	require.True(t, result.WasFailure())
	assert.Equal(t, domain.ErrorKindEvaluation, result.ErrorKind())

	divided, err := NewCalculate("{0} / {1}", nil, []InputField{
		NewConstantInput("1", nil),
		NewConstantInput("0", nil),
	}, nil)
	require.NoError(t, err)
	result = divided.Apply(context.Background(), domain.NewResult(rowContext(nil), nil, ""))
	require.True(t, result.WasFailure())
	assert.Equal(t, domain.ErrorKindEvaluation, result.ErrorKind())
}

func TestCalculateModulo(t *testing.T) {
	calc, err := NewCalculate("{value} % 3 + 7.5 % {value}", nil, nil, nil)
	require.NoError(t, err)

	result := apply(t, calc, 5)
	require.False(t, result.WasFailure(), result.ErrorMessage())
	assert.Equal(t, 4.5, result.CurrentValue())
}

func TestCalculateLargeNumbersUseDoublePrecision(t *testing.T) {
	calc, err := NewCalculate("{0} + 1", nil, nil, nil)
	require.NoError(t, err)

	for _, input := range []any{1e30, "12345678901234567890"} {
		result := apply(t, calc, input)
		require.False(t, result.WasFailure(), result.ErrorMessage())
		assert.Greater(t, result.CurrentValue().(float64), 1e19)
	}
}

type fixedEvaluator struct {
	result   float64
	compiled []string
	seen     []map[string]any
}

func (f *fixedEvaluator) Compile(expression string, variables []string) (Program, error) {
	f.compiled = append(f.compiled, expression+" "+strings.Join(variables, ","))
	return f, nil
}

func (f *fixedEvaluator) Run(vars map[string]any) (float64, error) {
	f.seen = append(f.seen, vars)
	return f.result, nil
}

func TestCalculateUsesInjectedEvaluator(t *testing.T) {
	evaluator := &fixedEvaluator{result: 7}
	step, err := Build(domain.TransformationSpec{Type: "calculate", Detail: "{0}+{1}+{x}"}, Env{Evaluator: evaluator})
	require.NoError(t, err)
	assert.Equal(t, []string{"p0+p1+0 value,p0,p1"}, evaluator.compiled)

	result := apply(t, step, decimal.RequireFromString("1.5"))
	require.False(t, result.WasFailure())
	assert.Equal(t, 7.0, result.CurrentValue())
	assert.Equal(t, []map[string]any{{"value": 1.5, "p0": 1.5, "p1": 0.0}}, evaluator.seen)

	result = apply(t, step, 2)
	require.False(t, result.WasFailure())
	assert.Len(t, evaluator.compiled, 1, "the expression compiles once")
}

func TestSubstring(t *testing.T) {
	cases := []struct {
		detail string
		want   string
	}{
		{"0,3", "Hel"},
		{"2", "llo World"},
		{"-5", "World"},
		{"-5,max", "World"},
		{"1,-2", "ello Wor"},
		{"100", ""},
		{"-100,2", "He"},
		{"3,1000", "lo World"},
		{"0,-100", ""},
	}
	for _, tc := range cases {
		step, err := NewSubstring(tc.detail)
		require.NoError(t, err, tc.detail)
		result := apply(t, step, "Hello World")
		require.False(t, result.WasFailure())
		assert.Equal(t, tc.want, result.CurrentValue(), "Substring(%s)", tc.detail)
	}

	step, err := NewSubstring("1,2")
	require.NoError(t, err)
	assert.Equal(t, "äö", apply(t, step, "üäöß").CurrentValue())

	_, err = NewSubstring("a,b")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCombineTemplate(t *testing.T) {
	assert.Equal(t, "John Doe", FillTemplate("{0} {1}", []any{"John", "Doe"}))
	assert.Equal(t, "static text", FillTemplate("static text", []any{"ignored"}))
	assert.Equal(t, "a-{3}", FillTemplate("{0}-{3}", []any{"a"}))
	assert.Equal(t, "{name}", FillTemplate("{name}", []any{"a"}))

	step, err := NewCombine("{0}/{1}", []InputField{
		NewFieldInput("Year", nil),
		NewFieldInput("Month", Chain{NewTrim()}),
	})
	require.NoError(t, err)
	result := step.Apply(context.Background(), domain.NewResult(rowContext(map[string]any{"Year": 2024, "Month": " 05 "}), nil, ""))
	require.False(t, result.WasFailure())
	assert.Equal(t, "2024/05", result.CurrentValue())
}

func TestCombineInputFailure(t *testing.T) {
	step, err := NewCombine("{0} {1}", []InputField{
		NewFieldInput("First", nil),
		NewFieldInput("Absent", nil),
	})
	require.NoError(t, err)
	result := step.Apply(context.Background(), domain.NewResult(rowContext(map[string]any{"First": "A"}), nil, ""))
	require.True(t, result.WasFailure())
	assert.Equal(t, domain.ErrorKindMissingField, result.ErrorKind())
	assert.Contains(t, result.ErrorMessage(), "Absent")
}

func TestTextTransformations(t *testing.T) {
	assert.Equal(t, "abc", apply(t, NewTrim(), "  abc \t").CurrentValue())
	assert.Equal(t, "ABC", apply(t, NewToUpper(), "abc").CurrentValue())
	assert.Equal(t, "abc", apply(t, NewToLower(), "AbC").CurrentValue())
	assert.Nil(t, apply(t, NewTrim(), nil).CurrentValue())

	replace, err := NewReplace("-", "")
	require.NoError(t, err)
	assert.Equal(t, "5551234", apply(t, replace, "555-12-34").CurrentValue())

	_, err = NewReplace("", "x")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRound(t *testing.T) {
	round, err := NewRound(intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, 2.5, apply(t, round, "2.45").CurrentValue())

	whole, err := NewRound(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), apply(t, whole, -2.5).CurrentValue())

	dec := apply(t, round, decimal.RequireFromString("1.26")).CurrentValue()
	assert.True(t, decimal.RequireFromString("1.3").Equal(dec.(decimal.Decimal)))

	result := apply(t, round, "n/a")
	require.True(t, result.WasFailure())
	assert.True(t, errors.Is(result.Err(), domain.ErrConversion))
}

func TestFormatDateAndDefaults(t *testing.T) {
	format := NewFormatDate("02 Jan 2006")
	assert.Equal(t, "29 Feb 2024", apply(t, format, "2024-02-29").CurrentValue())
	assert.Equal(t, "01 Mar 2024", apply(t, format, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).CurrentValue())
	assert.True(t, apply(t, format, "someday").WasFailure())

	fallback := NewDefaultValue("n/a")
	assert.Equal(t, "n/a", apply(t, fallback, nil).CurrentValue())
	assert.Equal(t, "n/a", apply(t, fallback, "   ").CurrentValue())
	assert.Equal(t, 0, apply(t, fallback, 0).CurrentValue())
}

func TestConvertStep(t *testing.T) {
	convert, err := NewConvert("int")
	require.NoError(t, err)
	assert.Equal(t, int64(42), apply(t, convert, "42").CurrentValue())

	result := apply(t, convert, "forty-two")
	require.True(t, result.WasFailure())
	assert.Equal(t, domain.ErrorKindConversion, result.ErrorKind())

	_, err = NewConvert("widget")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBuildRoundTrip(t *testing.T) {
	constant := "x"
	specs := []domain.TransformationSpec{
		{Type: "Trim"},
		{Type: "substring", Detail: "0,2"},
		{Type: "Replace", Arguments: []string{"a", "b"}},
		{Type: "Calculate", Detail: "{0}+1", DecimalPlaces: intPtr(2), Inputs: []domain.InputSpec{{Field: "Qty"}}},
		{Type: "CombineFields", Detail: "{0}{1}", Inputs: []domain.InputSpec{
			{Field: "A", Transformations: []domain.TransformationSpec{{Type: "ToUpper"}}},
			{Constant: &constant},
		}},
		{Type: "Round", DecimalPlaces: intPtr(0)},
		{Type: "FormatDate", Detail: "2006"},
		{Type: "DefaultValue", Detail: "none"},
		{Type: "Convert", Detail: "decimal"},
	}
	chain, err := BuildChain(specs, Env{})
	require.NoError(t, err)

	rebuilt, err := BuildChain(chain.Specs(), Env{})
	require.NoError(t, err)
	assert.Equal(t, chain.Specs(), rebuilt.Specs())
	assert.Equal(t, chain.Specs(), chain.Clone().Specs())

	_, err = Build(domain.TransformationSpec{Type: "Explode"}, Env{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
