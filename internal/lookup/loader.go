// Package lookup resolves keys against reference tables with batched,
// per-request dataloaders.
package lookup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

// Source fetches the value column for a batch of keys. Keys without a row are
// omitted from the returned map.
type Source interface {
	LookupValues(ctx context.Context, table domain.LookupSpec, keys []string) (map[string]any, error)
}

type found struct {
	value any
}

// Loaders holds one batched loader per lookup table. A Loaders value caches
// results, so create one per mapping run or request.
type Loaders struct {
	source  Source
	wait    time.Duration
	mu      sync.Mutex
	loaders map[domain.LookupSpec]*dataloader.Loader
}

// Option configures Loaders.
type Option func(*Loaders)

// WithWait sets how long a loader collects keys before dispatching a batch.
func WithWait(wait time.Duration) Option {
	return func(l *Loaders) {
		l.wait = wait
	}
}

func NewLoaders(source Source, opts ...Option) *Loaders {
	l := &Loaders{
		source:  source,
		wait:    5 * time.Millisecond,
		loaders: make(map[domain.LookupSpec]*dataloader.Loader),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the value mapped to key. The second result is false when the
// table has no row for the key.
func (l *Loaders) Load(ctx context.Context, table domain.LookupSpec, key string) (any, bool, error) {
	thunk := l.loaderFor(table).Load(ctx, dataloader.StringKey(key))
	data, err := thunk()
	if err != nil {
		return nil, false, err
	}
	hit, ok := data.(found)
	if !ok {
		return nil, false, nil
	}
	return hit.value, true, nil
}

func (l *Loaders) loaderFor(table domain.LookupSpec) *dataloader.Loader {
	l.mu.Lock()
	defer l.mu.Unlock()
	if loader, ok := l.loaders[table]; ok {
		return loader
	}
	loader := dataloader.NewBatchedLoader(l.batchFn(table), dataloader.WithWait(l.wait))
	l.loaders[table] = loader
	return loader
}

func (l *Loaders) batchFn(table domain.LookupSpec) dataloader.BatchFunc {
	return func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		raw := keys.Keys()
		values, err := l.source.LookupValues(ctx, table, raw)
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			err = fmt.Errorf("lookup %s.%s: %w", table.Table, table.ValueColumn, err)
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}
		for i, key := range raw {
			if value, ok := values[key]; ok {
				results[i] = &dataloader.Result{Data: found{value: value}}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}
}

// MemorySource serves lookups from rows held in memory, keyed by table name.
type MemorySource struct {
	tables map[string][]map[string]any
}

func NewMemorySource() *MemorySource {
	return &MemorySource{tables: make(map[string][]map[string]any)}
}

// AddTable registers the rows of a reference table.
func (m *MemorySource) AddTable(name string, rows []map[string]any) {
	m.tables[name] = rows
}

// AddRecords registers parsed records as a reference table.
func (m *MemorySource) AddRecords(name string, records []domain.Record) {
	rows := make([]map[string]any, len(records))
	for i, record := range records {
		rows[i] = record.Values
	}
	m.AddTable(name, rows)
}

func (m *MemorySource) LookupValues(_ context.Context, table domain.LookupSpec, keys []string) (map[string]any, error) {
	rows, ok := m.tables[table.Table]
	if !ok {
		return nil, fmt.Errorf("unknown lookup table %q", table.Table)
	}
	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}
	out := make(map[string]any, len(keys))
	for _, row := range rows {
		record := domain.Record{Values: row}
		keyValue, ok := record.Value(table.KeyColumn)
		if !ok || keyValue == nil {
			continue
		}
		key := compare.ToString(keyValue)
		if _, want := wanted[key]; !want {
			continue
		}
		if _, seen := out[key]; seen {
			continue
		}
		value, _ := record.Value(table.ValueColumn)
		out[key] = value
	}
	return out, nil
}
