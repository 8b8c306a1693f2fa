package mapper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/lookup"
	"github.com/rpattn/fieldmap/internal/rules"
	"github.com/rpattn/fieldmap/pkg/validator"
)

// RunLog persists the field level failures of a mapping run.
type RunLog interface {
	Record(ctx context.Context, entries []domain.RunLogEntry) error
}

// Executor maps source records onto a target table.
type Executor struct {
	concurrency int
	validator   *validator.RowValidator
	source      lookup.Source
	runLog      RunLog
	logger      zerolog.Logger
	builderOpts []rules.BuilderOption
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency bounds how many rows are mapped at once.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		e.concurrency = n
	}
}

// WithOutputValidation checks every mapped row against the target table.
func WithOutputValidation(v *validator.RowValidator) Option {
	return func(e *Executor) {
		e.validator = v
	}
}

// WithLookupSource attaches batched lookup loaders over source to runs whose
// context does not already carry them.
func WithLookupSource(source lookup.Source) Option {
	return func(e *Executor) {
		e.source = source
	}
}

// WithRunLog records failures of every run.
func WithRunLog(runLog RunLog) Option {
	return func(e *Executor) {
		e.runLog = runLog
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithBuilderOptions passes options to the rule builder used by Compile.
func WithBuilderOptions(opts ...rules.BuilderOption) Option {
	return func(e *Executor) {
		e.builderOpts = append(e.builderOpts, opts...)
	}
}

type pageRequest struct {
	limit  int
	offset int
}

type pageLimiter struct {
	limit  int
	offset int
	seen   int
}

func newPageLimiter(req pageRequest) pageLimiter {
	limiter := pageLimiter{limit: req.limit, offset: req.offset}
	if limiter.limit < 0 {
		limiter.limit = 0
	}
	if limiter.offset < 0 {
		limiter.offset = 0
	}
	return limiter
}

func (p *pageLimiter) ShouldContinue() bool {
	if p.limit == 0 {
		return true
	}
	return p.seen < p.offset+p.limit
}

func (p *pageLimiter) Consider() bool {
	p.seen++
	if p.seen <= p.offset {
		return false
	}
	if p.limit == 0 {
		return true
	}
	return p.seen <= p.offset+p.limit
}

// NewExecutor constructs a mapping executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{concurrency: 4, logger: log.Logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	return e
}

// Execute maps the page of records selected by opts. A failed field never
// aborts its siblings; the returned error is reserved for cancellation and
// run log failures.
func (e *Executor) Execute(ctx context.Context, plan *Plan, records []domain.Record, opts domain.MappingExecutionOptions) (domain.MappingExecutionResult, error) {
	if plan == nil {
		return domain.MappingExecutionResult{}, domain.ConfigError("mapping plan is required")
	}
	started := time.Now()
	runID := uuid.New()
	ctx = e.attachLoaders(ctx)

	limiter := newPageLimiter(pageRequest{limit: opts.Limit, offset: opts.Offset})
	selected := make([]domain.Record, 0, len(records))
	for _, record := range records {
		if !limiter.ShouldContinue() {
			break
		}
		if limiter.Consider() {
			selected = append(selected, record)
		}
	}

	rows := make([]domain.MappedRow, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, record := range selected {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = e.mapRecord(gctx, plan, record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.MappingExecutionResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.MappingExecutionResult{}, err
	}

	result := domain.MappingExecutionResult{
		RunID:      runID,
		Rows:       rows,
		TotalCount: len(records),
	}
	var entries []domain.RunLogEntry
	for _, row := range rows {
		failures := row.Failures()
		if len(failures) == 0 {
			continue
		}
		result.FailedCount++
		for _, failure := range failures {
			e.logger.Debug().
				Str("mapping", plan.definition.Name).
				Str("field", failure.Field).
				Int("row", row.RowNumber).
				Str("kind", string(failure.ErrorKind)).
				Msg(failure.Error)
			entries = append(entries, runLogEntry(runID, plan.definition.Name, row.RowNumber, failure))
		}
	}

	if e.runLog != nil && len(entries) > 0 {
		if err := e.runLog.Record(ctx, entries); err != nil {
			return result, fmt.Errorf("record run log: %w", err)
		}
	}

	e.logger.Info().
		Str("mapping", plan.definition.Name).
		Str("run", runID.String()).
		Int("rows", len(rows)).
		Int("failed", result.FailedCount).
		Dur("elapsed", time.Since(started)).
		Msg("mapping run finished")
	return result, nil
}

// Preview evaluates the plan against a design-time list of field descriptors
// instead of a record.
func (e *Executor) Preview(ctx context.Context, plan *Plan, fields []domain.FieldDescriptor) (domain.MappedRow, error) {
	if plan == nil {
		return domain.MappedRow{}, domain.ConfigError("mapping plan is required")
	}
	ctx = e.attachLoaders(ctx)
	rc := domain.ForDescriptors(fields, plan.target)
	row := domain.MappedRow{Fields: e.mapFields(ctx, plan, rc)}
	e.validateRow(plan, &row)
	return row, ctx.Err()
}

func (e *Executor) attachLoaders(ctx context.Context) context.Context {
	if e.source == nil || lookup.FromContext(ctx) != nil {
		return ctx
	}
	return lookup.WithLoaders(ctx, lookup.NewLoaders(e.source))
}

func (e *Executor) mapRecord(ctx context.Context, plan *Plan, record domain.Record) domain.MappedRow {
	rc := domain.ForRecord(record, plan.target)
	row := domain.MappedRow{
		RecordID:  record.ID,
		RowNumber: record.RowNumber,
		Fields:    e.mapFields(ctx, plan, rc),
	}
	e.validateRow(plan, &row)
	return row
}

func (e *Executor) mapFields(ctx context.Context, plan *Plan, rc domain.RowContext) []domain.FieldOutcome {
	outcomes := make([]domain.FieldOutcome, 0, len(plan.fields))
	for _, field := range plan.fields {
		result := field.rule.Evaluate(ctx, rc)
		outcomes = append(outcomes, outcomeOf(field.target.Name, result))
	}
	return outcomes
}

func outcomeOf(field string, result domain.TransformationResult) domain.FieldOutcome {
	outcome := domain.FieldOutcome{
		Field: field,
		Steps: result.AppliedTransformations(),
	}
	if !result.WasFailure() {
		outcome.Value = result.CurrentValue()
		return outcome
	}
	outcome.Failed = true
	outcome.Skipped = result.Skipped()
	outcome.ErrorKind = result.ErrorKind()
	outcome.Error = result.ErrorMessage()
	return outcome
}

// validateRow marks fields whose mapped values do not conform to the target
// table. Fields that already failed keep their original error.
func (e *Executor) validateRow(plan *Plan, row *domain.MappedRow) {
	if e.validator == nil {
		return
	}
	check := e.validator.ValidateRow(row.Values(), *plan.target)
	if check.IsValid {
		return
	}
	for _, issue := range check.Errors {
		idx := -1
		for i := range row.Fields {
			if row.Fields[i].Field == issue.Field {
				idx = i
				break
			}
		}
		if idx < 0 {
			row.Fields = append(row.Fields, domain.FieldOutcome{
				Field:     issue.Field,
				Failed:    true,
				ErrorKind: domain.ErrorKindMissingField,
				Error:     issue.Message,
			})
			continue
		}
		outcome := &row.Fields[idx]
		if outcome.Failed && !outcome.Skipped {
			continue
		}
		kind := domain.ErrorKindConversion
		if outcome.Value == nil {
			kind = domain.ErrorKindMissingField
		}
		outcome.Failed = true
		outcome.Skipped = false
		outcome.ErrorKind = kind
		outcome.Error = issue.Message
	}
}

func runLogEntry(runID uuid.UUID, mapping string, rowNumber int, failure domain.FieldOutcome) domain.RunLogEntry {
	entry := domain.RunLogEntry{
		ID:           uuid.New(),
		RunID:        runID,
		MappingName:  mapping,
		TargetField:  failure.Field,
		ErrorKind:    failure.ErrorKind,
		ErrorMessage: failure.Error,
		CreatedAt:    time.Now().UTC(),
	}
	if rowNumber > 0 {
		number := rowNumber
		entry.RowNumber = &number
	}
	return entry
}
