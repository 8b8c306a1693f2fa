package compare

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/fieldmap/internal/domain"
)

func TestEqualNumericAcrossRepresentations(t *testing.T) {
	cases := []struct {
		a, b any
	}{
		{int64(42), "42"},
		{42, 42.0},
		{"1.50", decimal.RequireFromString("1.5")},
		{json.Number("7"), uint8(7)},
		{" 3 ", int32(3)},
	}
	for _, tc := range cases {
		assert.True(t, Equal(tc.a, tc.b), "expected %v == %v", tc.a, tc.b)
		assert.True(t, Equal(tc.b, tc.a), "expected %v == %v", tc.b, tc.a)
	}
}

func TestEqualNulls(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, ""))
	assert.False(t, Equal(0, nil))
}

func TestNativeNumberAgainstText(t *testing.T) {
	assert.False(t, Equal(5, "five"))
	_, ok := Order(5, "five")
	assert.False(t, ok)
	_, ok = Order("five", 5)
	assert.False(t, ok)
}

func TestEqualTemporal(t *testing.T) {
	instant := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	local := instant.In(time.FixedZone("plus2", 2*3600))

	assert.True(t, Equal(instant, local))
	assert.True(t, Equal("2024-03-01T12:00:00Z", instant))
	assert.True(t, Equal("2024-03-01", "2024/03/01"))
}

func TestEqualTextIsCaseInsensitive(t *testing.T) {
	assert.True(t, Equal("Hello", "hELLO"))
	assert.False(t, Equal("Hello", "World"))
	assert.True(t, Equal(true, true))
	assert.True(t, Equal("TRUE", true))
}

func TestEqualCollections(t *testing.T) {
	assert.True(t, Equal([]any{1, "two"}, []string{"1", "TWO"}))
	assert.False(t, Equal([]any{1}, []any{1, 2}))
}

func TestEqualCollectionAgainstScalar(t *testing.T) {
	assert.False(t, Equal([]any{1, 2}, "1,2"))
	assert.False(t, Equal("1,2", []any{1, 2}))
	assert.False(t, Equal([]string{"a"}, "a"))
	assert.False(t, Equal([]any{1}, 1))
	assert.True(t, Contains([]any{1, 2}, "2"))
}

func TestOrder(t *testing.T) {
	cmp, ok := Order("10", 9)
	require.True(t, ok)
	assert.Equal(t, 1, cmp)

	cmp, ok = Order("2024-01-01", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, -1, cmp)

	cmp, ok = Order("apple", "banana")
	require.True(t, ok)
	assert.Equal(t, -1, cmp)

	// ordinal ordering is case-sensitive
	cmp, ok = Order("Zebra", "apple")
	require.True(t, ok)
	assert.Equal(t, -1, cmp)

	_, ok = Order(nil, 1)
	assert.False(t, ok)
	_, ok = Order(math.NaN(), 1.0)
	assert.False(t, ok)

	cmp, ok = Order(math.Inf(1), 1e300)
	require.True(t, ok)
	assert.Equal(t, 1, cmp)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Hello World", "WORLD"))
	assert.False(t, Contains("Hello", "xyz"))
	assert.True(t, Contains([]any{"a", 2, "c"}, "2"))
	assert.False(t, Contains([]any{"abc"}, "b"))
	assert.False(t, Contains(nil, "a"))
	assert.False(t, Contains("a", nil))

	for _, s := range []string{"x", "mixed Case", "ünïcode"} {
		assert.True(t, Contains(s, s), "contains must be reflexive for %q", s)
	}
}

func TestPrefixAndSuffix(t *testing.T) {
	assert.True(t, StartsWith("Invoice-2024", "invoice"))
	assert.True(t, EndsWith("report.CSV", ".csv"))
	assert.False(t, StartsWith(nil, "a"))
	assert.False(t, EndsWith("abc", nil))
}

func TestTruthiness(t *testing.T) {
	truthy := []any{true, 1, -2.5, "true", " TRUE ", "1", "0.5"}
	for _, v := range truthy {
		assert.True(t, IsTruthy(v), "expected %#v to be truthy", v)
		assert.False(t, IsFalsy(v), "expected %#v not to be falsy", v)
	}

	falsy := []any{false, 0, 0.0, "false", "False", "0", "0.00"}
	for _, v := range falsy {
		assert.True(t, IsFalsy(v), "expected %#v to be falsy", v)
		assert.False(t, IsTruthy(v), "expected %#v not to be truthy", v)
	}

	neither := []any{nil, "", "   ", "yes", "maybe", math.NaN()}
	for _, v := range neither {
		assert.False(t, IsTruthy(v), "expected %#v not to be truthy", v)
		assert.False(t, IsFalsy(v), "expected %#v not to be falsy", v)
	}
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "1.25", ToString(1.25))
	assert.Equal(t, "42", ToString(int64(42)))
	assert.Equal(t, "true", ToString(true))
	assert.Equal(t, "a,1", ToString([]any{"a", 1}))
	assert.Equal(t, "2024-01-02T03:04:05Z", ToString(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	id := uuid.MustParse("5f0c7a34-3c5b-4d0c-9d35-5d8f4c1d2e11")
	assert.Equal(t, id.String(), ToString(id))
	assert.False(t, IsCollection(id))
}

func TestElements(t *testing.T) {
	elements, ok := Elements([]int{1, 2})
	require.True(t, ok)
	assert.Equal(t, []any{1, 2}, elements)

	_, ok = Elements("text")
	assert.False(t, ok)
	_, ok = Elements([]byte("raw"))
	assert.False(t, ok)
}

func TestConvert(t *testing.T) {
	value, err := Convert("42", domain.FieldTypeInteger)
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)

	value, err = Convert(" 3.0 ", domain.FieldTypeInteger)
	require.NoError(t, err)
	assert.Equal(t, int64(3), value)

	value, err = Convert("12.5", domain.FieldTypeFloat)
	require.NoError(t, err)
	assert.Equal(t, 12.5, value)

	value, err = Convert(7, domain.FieldTypeDecimal)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(7).Equal(value.(decimal.Decimal)))

	value, err = Convert("yes", domain.FieldTypeBoolean)
	require.NoError(t, err)
	assert.Equal(t, true, value)

	value, err = Convert("2024-02-29", domain.FieldTypeTimestamp)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), value)

	value, err = Convert(`{"a":1}`, domain.FieldTypeJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, value)

	value, err = Convert(nil, domain.FieldTypeInteger)
	require.NoError(t, err)
	assert.Nil(t, value)

	value, err = Convert(99, "")
	require.NoError(t, err)
	assert.Equal(t, 99, value)
}

func TestConvertFailures(t *testing.T) {
	_, err := Convert("abc", domain.FieldTypeInteger)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConversion)

	var convErr *domain.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, domain.FieldTypeString, convErr.SourceType)
	assert.Equal(t, domain.FieldTypeInteger, convErr.TargetType)
	assert.Equal(t, "abc", convErr.Value)

	_, err = Convert("4.2", domain.FieldTypeInteger)
	assert.ErrorIs(t, err, domain.ErrConversion)

	_, err = Convert("maybe", domain.FieldTypeBoolean)
	assert.ErrorIs(t, err, domain.ErrConversion)

	_, err = Convert("not a date", domain.FieldTypeTimestamp)
	assert.ErrorIs(t, err, domain.ErrConversion)
}
