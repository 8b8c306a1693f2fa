package compare

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rpattn/fieldmap/internal/domain"
)

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// Convert coerces value to the target field type. Nil converts to nil for
// every type, and an empty or unknown target leaves the value untouched.
func Convert(value any, target domain.FieldType) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch target {
	case "", domain.FieldTypeUnknown, domain.FieldTypeCollection:
		return value, nil
	case domain.FieldTypeNull:
		return nil, nil
	case domain.FieldTypeString:
		return ToString(value), nil
	case domain.FieldTypeInteger:
		return toInteger(value)
	case domain.FieldTypeFloat:
		n, ok := numberOf(value)
		if !ok {
			return nil, conversionError(value, target, "not a number")
		}
		return n.asFloat(), nil
	case domain.FieldTypeDecimal:
		d, ok := ToDecimal(value)
		if !ok {
			return nil, conversionError(value, target, "not a finite number")
		}
		return d, nil
	case domain.FieldTypeBoolean:
		return toBoolean(value)
	case domain.FieldTypeTimestamp:
		ts, ok := ToTime(value)
		if !ok {
			return nil, conversionError(value, target, "unrecognized timestamp format")
		}
		return ts, nil
	case domain.FieldTypeJSON:
		return toJSON(value)
	default:
		return nil, conversionError(value, target, "unsupported target type")
	}
}

func toInteger(value any) (any, error) {
	if IsCollection(value) {
		return nil, conversionError(value, domain.FieldTypeInteger, "collections cannot be converted")
	}
	if b, ok := value.(bool); ok {
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	}
	d, ok := ToDecimal(value)
	if !ok {
		return nil, conversionError(value, domain.FieldTypeInteger, "not a finite number")
	}
	if !d.Equal(d.Truncate(0)) {
		return nil, conversionError(value, domain.FieldTypeInteger, "value has a fractional part")
	}
	if d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		return nil, conversionError(value, domain.FieldTypeInteger, "value out of range")
	}
	return d.IntPart(), nil
}

func toBoolean(value any) (any, error) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	if IsString(value) {
		switch strings.ToLower(strings.TrimSpace(ToString(value))) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
		return nil, conversionError(value, domain.FieldTypeBoolean, "not a boolean")
	}
	if d, ok := ToDecimal(value); ok {
		return !d.IsZero(), nil
	}
	return nil, conversionError(value, domain.FieldTypeBoolean, "not a boolean")
}

func toJSON(value any) (any, error) {
	if !IsString(value) {
		return value, nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(ToString(value)), &decoded); err != nil {
		return nil, conversionError(value, domain.FieldTypeJSON, err.Error())
	}
	return decoded, nil
}

func conversionError(value any, target domain.FieldType, reason string) *domain.ConversionError {
	return &domain.ConversionError{
		SourceType: domain.InferFieldType(value),
		TargetType: target,
		Value:      value,
		Reason:     reason,
	}
}
