package operations

import (
	"sort"
	"strings"
	"sync"

	"github.com/rpattn/fieldmap/internal/domain"
)

// Factory constructs an unconfigured operation.
type Factory func() Operation

// Registry resolves serialized operation identifiers to operations.
// Identifiers are matched case-insensitively with '_', '-' and spaces ignored.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	types     map[string]Type
}

// NewRegistry returns a registry holding every built-in operation and the
// common symbolic aliases (==, !=, >, >=, <, <=).
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		types:     make(map[string]Type),
	}
	for _, kind := range []Type{TypeEquals, TypeNotEqual, TypeGreaterThan, TypeGreaterThanOrEqual, TypeLessThan, TypeLessThanOrEqual} {
		r.Register(kind, func() Operation { return newComparison(kind) })
	}
	for _, kind := range []Type{TypeBetween, TypeNotBetween} {
		r.Register(kind, func() Operation { return newRange(kind) })
	}
	for _, kind := range []Type{TypeContains, TypeNotContains, TypeStartsWith, TypeEndsWith} {
		r.Register(kind, func() Operation { return newTextMatch(kind) })
	}
	for _, kind := range []Type{TypeIn, TypeNotIn} {
		r.Register(kind, func() Operation { return newMembership(kind) })
	}
	for _, kind := range []Type{TypeIsNull, TypeIsNotNull, TypeIsNullOrEmpty, TypeIsNotNullOrEmpty, TypeIsNullOrWhiteSpace, TypeIsNotNullOrWhiteSpace} {
		r.Register(kind, func() Operation { return newNullCheck(kind) })
	}
	for _, kind := range []Type{TypeIsTrue, TypeIsFalse} {
		r.Register(kind, func() Operation { return newTruth(kind) })
	}
	r.Register(TypeRegexMatch, func() Operation { return newRegexMatch() })

	aliases := map[string]Type{
		"==":        TypeEquals,
		"eq":        TypeEquals,
		"equal":     TypeEquals,
		"!=":        TypeNotEqual,
		"<>":        TypeNotEqual,
		"ne":        TypeNotEqual,
		"notequals": TypeNotEqual,
		">":         TypeGreaterThan,
		"gt":        TypeGreaterThan,
		">=":        TypeGreaterThanOrEqual,
		"gte":       TypeGreaterThanOrEqual,
		"<":         TypeLessThan,
		"lt":        TypeLessThan,
		"<=":        TypeLessThanOrEqual,
		"lte":       TypeLessThanOrEqual,
		"regex":     TypeRegexMatch,
	}
	for alias, kind := range aliases {
		r.Alias(alias, kind)
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the shared registry of built-in operations.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register adds or replaces an operation under its type identifier.
func (r *Registry) Register(kind Type, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeTypeID(string(kind))
	r.factories[key] = factory
	r.types[key] = kind
}

// Alias makes an extra identifier resolve to an already registered type.
func (r *Registry) Alias(alias string, kind Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	factory, ok := r.factories[normalizeTypeID(string(kind))]
	if !ok {
		return
	}
	r.factories[normalizeTypeID(alias)] = factory
}

// Resolve returns a fresh, unconfigured operation, or nil when the identifier
// is unknown.
func (r *Registry) Resolve(typeID string) Operation {
	r.mu.RLock()
	factory, ok := r.factories[normalizeTypeID(typeID)]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return factory()
}

// New resolves and configures an operation in one step.
func (r *Registry) New(typeID string, operands Operands) (Operation, error) {
	op := r.Resolve(typeID)
	if op == nil {
		return nil, domain.ConfigError("unknown comparison operation %q", typeID)
	}
	if err := op.Configure(operands); err != nil {
		return nil, err
	}
	return op, nil
}

// Types lists the registered canonical operation types in name order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.types))
	for _, kind := range r.types {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func normalizeTypeID(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch r {
		case '_', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
