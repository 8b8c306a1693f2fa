package transforms

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

// Round rounds numbers half away from zero. Decimals stay decimals; other
// numbers become float64, or int64 when rounding to zero places.
type Round struct {
	places int
}

func NewRound(decimalPlaces *int) (*Round, error) {
	places := 0
	if decimalPlaces != nil {
		places = *decimalPlaces
	}
	if places < 0 {
		return nil, domain.ConfigError("Round decimal places must not be negative")
	}
	return &Round{places: places}, nil
}

func (r *Round) Kind() Kind { return KindRound }

func (r *Round) Apply(_ context.Context, in domain.TransformationResult) domain.TransformationResult {
	if in.WasFailure() {
		return in
	}
	step := string(KindRound)
	value := in.CurrentValue()
	if value == nil {
		return in.WithValue(nil, step)
	}
	d, ok := compare.ToDecimal(value)
	if !ok {
		return fail(in, step, &domain.ConversionError{
			SourceType: domain.InferFieldType(value),
			TargetType: domain.FieldTypeDecimal,
			Value:      value,
			Reason:     "only numbers can be rounded",
		})
	}
	rounded := d.Round(int32(r.places))
	if _, isDecimal := value.(decimal.Decimal); isDecimal {
		return in.WithValue(rounded, step)
	}
	if r.places == 0 {
		return in.WithValue(rounded.IntPart(), step)
	}
	return in.WithValue(rounded.InexactFloat64(), step)
}

func (r *Round) Clone() Transformation {
	return &Round{places: r.places}
}

func (r *Round) Spec() domain.TransformationSpec {
	places := r.places
	return domain.TransformationSpec{Type: string(KindRound), DecimalPlaces: &places}
}

// FormatDate renders a timestamp with a Go layout, RFC3339 by default.
type FormatDate struct {
	layout string
}

func NewFormatDate(layout string) *FormatDate {
	return &FormatDate{layout: layout}
}

func (f *FormatDate) Kind() Kind { return KindFormatDate }

func (f *FormatDate) Apply(_ context.Context, in domain.TransformationResult) domain.TransformationResult {
	if in.WasFailure() {
		return in
	}
	layout := f.layout
	if layout == "" {
		layout = time.RFC3339
	}
	step := stepName(KindFormatDate, f.layout)
	value := in.CurrentValue()
	if value == nil {
		return in.WithValue(nil, step)
	}
	ts, ok := compare.ToTime(value)
	if !ok {
		return fail(in, step, &domain.ConversionError{
			SourceType: domain.InferFieldType(value),
			TargetType: domain.FieldTypeTimestamp,
			Value:      value,
			Reason:     "unrecognized timestamp format",
		})
	}
	return in.WithValue(ts.Format(layout), step)
}

func (f *FormatDate) Clone() Transformation {
	return &FormatDate{layout: f.layout}
}

func (f *FormatDate) Spec() domain.TransformationSpec {
	return domain.TransformationSpec{Type: string(KindFormatDate), Detail: f.layout}
}

// Convert coerces the value to a field type.
type Convert struct {
	target domain.FieldType
}

func NewConvert(target string) (*Convert, error) {
	fieldType, ok := domain.ParseFieldType(target)
	if !ok {
		return nil, domain.ConfigError("Convert target %q is not a known field type", target)
	}
	return &Convert{target: fieldType}, nil
}

func (c *Convert) Kind() Kind { return KindConvert }

func (c *Convert) Apply(_ context.Context, in domain.TransformationResult) domain.TransformationResult {
	if in.WasFailure() {
		return in
	}
	step := stepName(KindConvert, string(c.target))
	converted, err := compare.Convert(in.CurrentValue(), c.target)
	if err != nil {
		return fail(in, step, err)
	}
	return in.WithValue(converted, step)
}

func (c *Convert) Clone() Transformation {
	return &Convert{target: c.target}
}

func (c *Convert) Spec() domain.TransformationSpec {
	return domain.TransformationSpec{Type: string(KindConvert), Detail: string(c.target)}
}
