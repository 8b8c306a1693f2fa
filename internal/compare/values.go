package compare

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// TimeLayouts lists the layouts tried, in order, when a string is read as a
// timestamp. Day-first dates are only reached when month-first parsing fails.
var TimeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05.000000000",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
}

// ParseTime parses raw with the first matching layout and returns a UTC instant.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range TimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format %q", raw)
}

// ToString renders a value the way it is compared and substituted into
// templates. Nil renders as the empty string.
func ToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case decimal.Decimal:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	case map[string]any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
	if IsCollection(value) {
		elements, _ := Elements(value)
		parts := make([]string, len(elements))
		for i, element := range elements {
			parts[i] = ToString(element)
		}
		return strings.Join(parts, ",")
	}
	if s, err := cast.ToStringE(value); err == nil {
		return s
	}
	return fmt.Sprint(value)
}

// IsString reports whether value is textual.
func IsString(value any) bool {
	switch v := value.(type) {
	case string, []byte:
		return true
	case *string:
		return v != nil
	}
	return false
}

// isNativeNumber reports whether value is a Go numeric type rather than text.
func isNativeNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, decimal.Decimal, json.Number:
		return true
	}
	return false
}

// number is the numeric reading of a value. Finite values are held as
// decimals; NaN and infinities keep their float form.
type number struct {
	dec    decimal.Decimal
	float  float64
	finite bool
}

func numberOf(value any) (number, bool) {
	switch v := value.(type) {
	case int:
		return number{dec: decimal.NewFromInt(int64(v)), finite: true}, true
	case int8:
		return number{dec: decimal.NewFromInt(int64(v)), finite: true}, true
	case int16:
		return number{dec: decimal.NewFromInt(int64(v)), finite: true}, true
	case int32:
		return number{dec: decimal.NewFromInt(int64(v)), finite: true}, true
	case int64:
		return number{dec: decimal.NewFromInt(v), finite: true}, true
	case uint:
		return number{dec: decimalFromUint(uint64(v)), finite: true}, true
	case uint8:
		return number{dec: decimal.NewFromInt(int64(v)), finite: true}, true
	case uint16:
		return number{dec: decimal.NewFromInt(int64(v)), finite: true}, true
	case uint32:
		return number{dec: decimal.NewFromInt(int64(v)), finite: true}, true
	case uint64:
		return number{dec: decimalFromUint(v), finite: true}, true
	case float32:
		return floatNumber(float64(v)), true
	case float64:
		return floatNumber(v), true
	case decimal.Decimal:
		return number{dec: v, finite: true}, true
	case json.Number:
		return stringNumber(string(v))
	case string:
		return stringNumber(v)
	case *string:
		if v == nil {
			return number{}, false
		}
		return stringNumber(*v)
	case []byte:
		return stringNumber(string(v))
	}
	return number{}, false
}

func decimalFromUint(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func floatNumber(f float64) number {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return number{float: f}
	}
	return number{dec: decimal.NewFromFloat(f), finite: true}
}

func stringNumber(raw string) (number, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return number{}, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return number{}, false
	}
	return number{dec: d, finite: true}, true
}

func (n number) asFloat() float64 {
	if n.finite {
		return n.dec.InexactFloat64()
	}
	return n.float
}

// compareNumbers orders two numbers. NaN is unordered.
func compareNumbers(a, b number) (int, bool) {
	if a.finite && b.finite {
		return a.dec.Cmp(b.dec), true
	}
	fa, fb := a.asFloat(), b.asFloat()
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	default:
		return 0, true
	}
}

// ToDecimal reads a finite number from a Go number, decimal or numeric string.
func ToDecimal(value any) (decimal.Decimal, bool) {
	n, ok := numberOf(value)
	if !ok || !n.finite {
		return decimal.Decimal{}, false
	}
	return n.dec, true
}

// ToFloat reads any number, including NaN and infinities, as a float64.
func ToFloat(value any) (float64, bool) {
	n, ok := numberOf(value)
	if !ok {
		return 0, false
	}
	return n.asFloat(), true
}

// ToTime reads a time.Time or a parseable timestamp string as a UTC instant.
// Numbers are never read as timestamps.
func ToTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return v.UTC(), true
	case string, *string, []byte:
		ts, err := ParseTime(ToString(v))
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	}
	return time.Time{}, false
}

// IsCollection reports whether value is a slice or array of elements. Text
// and byte slices are not collections.
func IsCollection(value any) bool {
	if value == nil {
		return false
	}
	switch value.(type) {
	case string, []byte:
		return false
	}
	rt := reflect.TypeOf(value)
	if rt.Kind() != reflect.Slice && rt.Kind() != reflect.Array {
		return false
	}
	// byte arrays such as uuid.UUID are scalars
	return rt.Elem().Kind() != reflect.Uint8
}

// Elements returns the members of a collection.
func Elements(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		copy(out, v)
		return out, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	if !IsCollection(value) {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// IsEmptyString reports an empty string value.
func IsEmptyString(value any) bool {
	return IsString(value) && ToString(value) == ""
}

// IsWhiteSpace reports a string that is empty or contains only white space.
func IsWhiteSpace(value any) bool {
	return IsString(value) && strings.TrimSpace(ToString(value)) == ""
}
