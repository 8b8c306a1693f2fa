// Package compare implements the cross-type comparison rules shared by every
// condition operation. Values are tried as numbers, then as timestamps, and
// finally as text.
package compare

import (
	"math"
	"strings"
)

// Equal reports whether a and b represent the same value. Two nils are
// equal; a nil never equals a non-nil value, and a collection never equals
// a scalar.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if mismatchedNumber(a, b) {
		return false
	}
	if na, ok := numberOf(a); ok {
		if nb, ok := numberOf(b); ok {
			cmp, ordered := compareNumbers(na, nb)
			return ordered && cmp == 0
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ba == bb
		}
	}
	if ta, ok := ToTime(a); ok {
		if tb, ok := ToTime(b); ok {
			return ta.Equal(tb)
		}
	}
	if IsCollection(a) && IsCollection(b) {
		ea, _ := Elements(a)
		eb, _ := Elements(b)
		if len(ea) != len(eb) {
			return false
		}
		for i := range ea {
			if !Equal(ea[i], eb[i]) {
				return false
			}
		}
		return true
	}
	if IsCollection(a) || IsCollection(b) {
		return false
	}
	return strings.EqualFold(ToString(a), ToString(b))
}

// Order compares a and b, returning -1, 0 or 1. The second result is false
// when the pair has no defined ordering: either side nil, a number against
// non-numeric text, NaN, or a collection.
func Order(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if mismatchedNumber(a, b) {
		return 0, false
	}
	if na, ok := numberOf(a); ok {
		if nb, ok := numberOf(b); ok {
			return compareNumbers(na, nb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return compareBools(ba, bb), true
		}
	}
	if ta, ok := ToTime(a); ok {
		if tb, ok := ToTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	if IsCollection(a) || IsCollection(b) {
		return 0, false
	}
	return strings.Compare(ToString(a), ToString(b)), true
}

// Contains reports whether haystack contains needle. A collection is
// searched element-wise; anything else is a case-insensitive substring test.
func Contains(haystack, needle any) bool {
	if haystack == nil || needle == nil {
		return false
	}
	if elements, ok := Elements(haystack); ok {
		for _, element := range elements {
			if Equal(element, needle) {
				return true
			}
		}
		return false
	}
	return strings.Contains(fold(haystack), fold(needle))
}

// StartsWith is a case-insensitive prefix test on the text form of the values.
func StartsWith(value, prefix any) bool {
	if value == nil || prefix == nil {
		return false
	}
	return strings.HasPrefix(fold(value), fold(prefix))
}

// EndsWith is a case-insensitive suffix test on the text form of the values.
func EndsWith(value, suffix any) bool {
	if value == nil || suffix == nil {
		return false
	}
	return strings.HasSuffix(fold(value), fold(suffix))
}

// IsTruthy reports true, a non-zero number, "true" or a non-zero numeric
// string. Nil, empty text and other strings are not truthy.
func IsTruthy(value any) bool {
	truth, ok := truthOf(value)
	return ok && truth
}

// IsFalsy reports false, zero, "false" or a zero numeric string. Nil, empty
// text and other strings are not falsy.
func IsFalsy(value any) bool {
	truth, ok := truthOf(value)
	return ok && !truth
}

func truthOf(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	}
	if IsString(value) {
		raw := strings.TrimSpace(ToString(value))
		switch strings.ToLower(raw) {
		case "":
			return false, false
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	n, ok := numberOf(value)
	if !ok {
		return false, false
	}
	if !n.finite {
		if math.IsNaN(n.float) {
			return false, false
		}
		return true, true
	}
	return !n.dec.IsZero(), true
}

// mismatchedNumber reports a native number paired with text that does not
// read as a number. Such pairs are neither equal nor ordered.
func mismatchedNumber(a, b any) bool {
	check := func(num, text any) bool {
		if !isNativeNumber(num) || !IsString(text) {
			return false
		}
		_, ok := numberOf(text)
		return !ok
	}
	return check(a, b) || check(b, a)
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func fold(value any) string {
	return strings.ToLower(ToString(value))
}
