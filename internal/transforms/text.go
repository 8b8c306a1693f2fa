package transforms

import (
	"context"
	"strconv"
	"strings"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

// Substring extracts runes by "start[,length]". A negative start counts from
// the end, a negative length is taken off the remaining length and "max" or an
// omitted length means the remainder. Indices are clamped, never rejected.
type Substring struct {
	detail    string
	start     int
	length    int
	hasLength bool
}

func NewSubstring(detail string) (*Substring, error) {
	parts := strings.Split(detail, ",")
	if strings.TrimSpace(detail) == "" || len(parts) > 2 {
		return nil, domain.ConfigError("Substring detail must be \"start[,length]\", got %q", detail)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, domain.ConfigError("Substring start %q is not an integer", parts[0])
	}
	s := &Substring{detail: detail, start: start}
	if len(parts) == 2 {
		raw := strings.TrimSpace(parts[1])
		if raw != "" && !strings.EqualFold(raw, "max") {
			length, err := strconv.Atoi(raw)
			if err != nil {
				return nil, domain.ConfigError("Substring length %q is not an integer", parts[1])
			}
			s.length = length
			s.hasLength = true
		}
	}
	return s, nil
}

func (s *Substring) Kind() Kind { return KindSubstring }

func (s *Substring) Apply(_ context.Context, in domain.TransformationResult) domain.TransformationResult {
	if in.WasFailure() {
		return in
	}
	step := stepName(KindSubstring, s.detail)
	if in.CurrentValue() == nil {
		return in.WithValue(nil, step)
	}
	runes := []rune(compare.ToString(in.CurrentValue()))
	from, to := s.bounds(len(runes))
	return in.WithValue(string(runes[from:to]), step)
}

func (s *Substring) bounds(size int) (int, int) {
	start := s.start
	if start < 0 {
		start = size + start
	}
	start = clamp(start, 0, size)

	remaining := size - start
	length := remaining
	if s.hasLength {
		length = s.length
		if length < 0 {
			length = remaining + length
		}
	}
	end := clamp(start+clamp(length, 0, remaining), start, size)
	return start, end
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *Substring) Clone() Transformation {
	cloned := *s
	return &cloned
}

func (s *Substring) Spec() domain.TransformationSpec {
	return domain.TransformationSpec{Type: string(KindSubstring), Detail: s.detail}
}

// Combine substitutes values positionally into a "{0} {1}" style template.
// Placeholders without a value are left as written.
type Combine struct {
	template string
	inputs   []InputField
}

func NewCombine(template string, inputs []InputField) (*Combine, error) {
	if template == "" {
		return nil, domain.ConfigError("CombineFields requires a template")
	}
	return &Combine{template: template, inputs: inputs}, nil
}

func (c *Combine) Kind() Kind { return KindCombineFields }

func (c *Combine) Apply(ctx context.Context, in domain.TransformationResult) domain.TransformationResult {
	if in.WasFailure() {
		return in
	}
	step := stepName(KindCombineFields, c.template)
	values := []any{in.CurrentValue()}
	if len(c.inputs) > 0 {
		resolved, failed := ResolveInputs(ctx, in.Context(), c.inputs)
		if failed != nil {
			return in.WithLogEntry(step).WithFailure(failed.ErrorKind(), failed.ErrorMessage())
		}
		values = resolved
	}
	return in.WithValue(FillTemplate(c.template, values), step)
}

// FillTemplate replaces {index} placeholders with the text form of values.
// A template without placeholders is returned unchanged.
func FillTemplate(template string, values []any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		index, err := strconv.Atoi(match[1 : len(match)-1])
		if err != nil || index < 0 || index >= len(values) {
			return match
		}
		return compare.ToString(values[index])
	})
}

func (c *Combine) Clone() Transformation {
	return &Combine{template: c.template, inputs: CloneInputs(c.inputs)}
}

func (c *Combine) Spec() domain.TransformationSpec {
	return domain.TransformationSpec{
		Type:   string(KindCombineFields),
		Detail: c.template,
		Inputs: inputSpecs(c.inputs),
	}
}

// Text covers the string rewriting transformations. Nil passes through.
type Text struct {
	kind      Kind
	arguments []string
}

func newText(kind Kind, arguments []string) (*Text, error) {
	if kind == KindReplace && (len(arguments) == 0 || arguments[0] == "") {
		return nil, domain.ConfigError("Replace requires the text to replace as its first argument")
	}
	return &Text{kind: kind, arguments: append([]string(nil), arguments...)}, nil
}

func NewTrim() *Text    { return &Text{kind: KindTrim} }
func NewToUpper() *Text { return &Text{kind: KindToUpper} }
func NewToLower() *Text { return &Text{kind: KindToLower} }

func NewReplace(old, replacement string) (*Text, error) {
	return newText(KindReplace, []string{old, replacement})
}

func (t *Text) Kind() Kind { return t.kind }

func (t *Text) Apply(_ context.Context, in domain.TransformationResult) domain.TransformationResult {
	if in.WasFailure() {
		return in
	}
	step := string(t.kind)
	if in.CurrentValue() == nil {
		return in.WithValue(nil, step)
	}
	value := compare.ToString(in.CurrentValue())

	switch t.kind {
	case KindTrim:
		value = strings.TrimSpace(value)
	case KindToUpper:
		value = strings.ToUpper(value)
	case KindToLower:
		value = strings.ToLower(value)
	case KindReplace:
		replacement := ""
		if len(t.arguments) > 1 {
			replacement = t.arguments[1]
		}
		value = strings.ReplaceAll(value, t.arguments[0], replacement)
	default:
		return fail(in, step, domain.ConfigError("unsupported text transformation %s", t.kind))
	}
	return in.WithValue(value, step)
}

func (t *Text) Clone() Transformation {
	return &Text{kind: t.kind, arguments: append([]string(nil), t.arguments...)}
}

func (t *Text) Spec() domain.TransformationSpec {
	spec := domain.TransformationSpec{Type: string(t.kind)}
	if len(t.arguments) > 0 {
		spec.Arguments = append([]string(nil), t.arguments...)
	}
	return spec
}

// DefaultValue replaces nil or blank text with a fallback.
type DefaultValue struct {
	fallback string
}

func NewDefaultValue(fallback string) *DefaultValue {
	return &DefaultValue{fallback: fallback}
}

func (d *DefaultValue) Kind() Kind { return KindDefaultValue }

func (d *DefaultValue) Apply(_ context.Context, in domain.TransformationResult) domain.TransformationResult {
	if in.WasFailure() {
		return in
	}
	value := in.CurrentValue()
	if value == nil || compare.IsWhiteSpace(value) {
		return in.WithValue(d.fallback, stepName(KindDefaultValue, d.fallback))
	}
	return in.WithValue(value, string(KindDefaultValue))
}

func (d *DefaultValue) Clone() Transformation {
	return &DefaultValue{fallback: d.fallback}
}

func (d *DefaultValue) Spec() domain.TransformationSpec {
	return domain.TransformationSpec{Type: string(KindDefaultValue), Detail: d.fallback}
}
