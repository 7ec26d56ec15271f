// Package memory is an in-process store provider. Data lives only as long as
// the process and is meant for local development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"hisab/internal/store"
)

type Store struct {
	mu   sync.RWMutex
	rows map[string][]store.Record
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[string][]store.Record)}
}

func (s *Store) Insert(ctx context.Context, collection string, rec store.Record) error {
	scope, err := store.Authorize(ctx, collection)
	if err != nil {
		return err
	}
	if err := scope.CheckInsert(rec); err != nil {
		return err
	}
	row, err := store.NormalizeRecord(scope.Schema, rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[collection]
	unique := append([]string{store.FieldID}, scope.Schema.Unique...)
	for _, existing := range rows {
		for _, col := range unique {
			if v, ok := row[col]; ok && v != nil && store.Equal(existing[col], v) {
				return fmt.Errorf("%w: %s.%s", store.ErrConflict, collection, col)
			}
		}
	}
	s.rows[collection] = append(rows, row)
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, q store.Query) ([]store.Record, error) {
	scope, err := store.Authorize(ctx, collection)
	if err != nil {
		return nil, err
	}
	if err := scope.CheckQuery(q); err != nil {
		return nil, err
	}
	filters, err := normalizeFilters(scope.Schema, scope.Constrain(q.Filters))
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []store.Record
	for _, row := range s.rows[collection] {
		if matches(row, filters) {
			out = append(out, row.Clone())
		}
	}
	s.mu.RUnlock()

	if len(q.Order) > 0 {
		slices.SortStableFunc(out, func(a, b store.Record) int {
			for _, o := range q.Order {
				c := store.Compare(a[o.Field], b[o.Field])
				if o.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch store.Record, where ...store.Filter) (int64, error) {
	scope, err := store.Authorize(ctx, collection)
	if err != nil {
		return 0, err
	}
	if err := scope.CheckPatch(patch); err != nil {
		return 0, err
	}
	values, err := store.NormalizeRecord(scope.Schema, patch)
	if err != nil {
		return 0, err
	}
	filters, err := normalizeFilters(scope.Schema, scope.ByID(id, where...))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i, row := range s.rows[collection] {
		if !matches(row, filters) {
			continue
		}
		updated := row.Clone()
		for k, v := range values {
			updated[k] = v
		}
		s.rows[collection][i] = updated
		n++
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) (int64, error) {
	scope, err := store.Authorize(ctx, collection)
	if err != nil {
		return 0, err
	}
	filters, err := normalizeFilters(scope.Schema, scope.ByID(id))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.rows[collection])
	s.rows[collection] = slices.DeleteFunc(s.rows[collection], func(row store.Record) bool {
		return matches(row, filters)
	})
	return int64(before - len(s.rows[collection])), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func normalizeFilters(schema store.Schema, filters []store.Filter) ([]store.Filter, error) {
	out := make([]store.Filter, len(filters))
	for i, f := range filters {
		col, ok := schema.Column(f.Field)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", store.ErrUnknownColumn, schema.Name, f.Field)
		}
		v, err := store.Normalize(col.Kind, f.Value)
		if err != nil {
			return nil, err
		}
		out[i] = store.Filter{Field: f.Field, Value: v}
	}
	return out, nil
}

func matches(row store.Record, filters []store.Filter) bool {
	for _, f := range filters {
		if !store.Equal(row[f.Field], f.Value) {
			return false
		}
	}
	return true
}
