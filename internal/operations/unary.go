package operations

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

// NullCheck covers the IsNull family. Only strings can be empty or white space.
type NullCheck struct {
	base
}

func newNullCheck(kind Type) *NullCheck {
	return &NullCheck{base: base{kind: kind}}
}

func (n *NullCheck) Configure(operands Operands) error {
	return n.store(operands, "left")
}

func (n *NullCheck) Evaluate(ctx context.Context, rc domain.RowContext) (bool, error) {
	if err := n.ready(); err != nil {
		return false, err
	}
	value, err := resolve(ctx, rc, n.operands.Left, "left")
	if err != nil {
		return false, err
	}

	switch n.kind {
	case TypeIsNull:
		return value == nil, nil
	case TypeIsNotNull:
		return value != nil, nil
	case TypeIsNullOrEmpty:
		return value == nil || compare.IsEmptyString(value), nil
	case TypeIsNotNullOrEmpty:
		return value != nil && !compare.IsEmptyString(value), nil
	case TypeIsNullOrWhiteSpace:
		return value == nil || compare.IsWhiteSpace(value), nil
	case TypeIsNotNullOrWhiteSpace:
		return value != nil && !compare.IsWhiteSpace(value), nil
	default:
		return false, fmt.Errorf("unsupported null check %s", n.kind)
	}
}

func (n *NullCheck) Clone() Operation {
	return &NullCheck{base: n.cloneBase()}
}

// Truth covers IsTrue and IsFalse. Null and non-boolean text satisfy neither.
type Truth struct {
	base
}

func newTruth(kind Type) *Truth {
	return &Truth{base: base{kind: kind}}
}

func (t *Truth) Configure(operands Operands) error {
	return t.store(operands, "left")
}

func (t *Truth) Evaluate(ctx context.Context, rc domain.RowContext) (bool, error) {
	if err := t.ready(); err != nil {
		return false, err
	}
	value, err := resolve(ctx, rc, t.operands.Left, "left")
	if err != nil {
		return false, err
	}
	if t.kind == TypeIsFalse {
		return compare.IsFalsy(value), nil
	}
	return compare.IsTruthy(value), nil
}

func (t *Truth) Clone() Operation {
	return &Truth{base: t.cloneBase()}
}

// RegexMatch matches the left string against the right pattern.
type RegexMatch struct {
	base
	patterns *patternCache
}

func newRegexMatch() *RegexMatch {
	return &RegexMatch{base: base{kind: TypeRegexMatch}, patterns: newPatternCache()}
}

// maxCachedPatterns bounds the cache when the pattern comes from row data.
const maxCachedPatterns = 256

// patternCache holds compiled patterns keyed by source. Safe for concurrent use.
type patternCache struct {
	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{compiled: make(map[string]*regexp.Regexp)}
}

func (c *patternCache) compile(expr string) (*regexp.Regexp, error) {
	c.mu.Lock()
	re, ok := c.compiled[expr]
	c.mu.Unlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if len(c.compiled) < maxCachedPatterns {
		c.compiled[expr] = re
	}
	c.mu.Unlock()
	return re, nil
}

func (c *patternCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.compiled)
}

func (r *RegexMatch) Configure(operands Operands) error {
	return r.store(operands, "left", "right")
}

func (r *RegexMatch) Evaluate(ctx context.Context, rc domain.RowContext) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	input, pattern, err := resolvePair(ctx, rc, r.operands)
	if err != nil {
		return false, err
	}
	if input == nil || pattern == nil {
		return false, nil
	}
	if !compare.IsString(input) || !compare.IsString(pattern) {
		return false, domain.NewError(domain.ErrorKindEvaluation,
			"regex match requires string operands, got %s and %s",
			domain.InferFieldType(input), domain.InferFieldType(pattern))
	}

	expr := compare.ToString(pattern)
	if expr == "" {
		return false, nil
	}
	re, err := r.patterns.compile(expr)
	if err != nil {
		return false, &domain.EvaluationError{
			Kind:    domain.ErrorKindEvaluation,
			Message: fmt.Sprintf("invalid pattern %q", expr),
			Err:     err,
		}
	}
	return re.MatchString(compare.ToString(input)), nil
}

func (r *RegexMatch) Clone() Operation {
	return &RegexMatch{base: r.cloneBase(), patterns: r.patterns}
}
