// Package store defines the generic data provider the ledger talks to.
//
// A provider exposes insert, query, update and delete against named
// collections. Every provider enforces row ownership itself: callers put the
// authenticated owner in the context with WithOwner and the provider scopes
// each operation to that owner's rows.
package store

import (
	"context"
	"errors"
)

// Record is a single row keyed by persisted field name.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the field as a string, or "" when absent or not a string.
func (r Record) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Filter is an equality condition on a field.
type Filter struct {
	Field string
	Value any
}

// Order is a sort term.
type Order struct {
	Field string
	Desc  bool
}

// Query selects rows matching all filters, sorted by the order terms in turn.
type Query struct {
	Filters []Filter
	Order   []Order
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Asc builds an ascending sort term.
func Asc(field string) Order {
	return Order{Field: field}
}

// Desc builds a descending sort term.
func Desc(field string) Order {
	return Order{Field: field, Desc: true}
}

// Store is the data provider contract.
type Store interface {
	Insert(ctx context.Context, collection string, rec Record) error
	Query(ctx context.Context, collection string, q Query) ([]Record, error)
	// Update applies patch to the row with the given id when it also matches
	// every filter in where, and reports the number of rows changed. Matching
	// no row is not an error.
	Update(ctx context.Context, collection string, id string, patch Record, where ...Filter) (int64, error)
	// Delete removes the row with the given id and reports the number of rows
	// removed. Matching no row is not an error.
	Delete(ctx context.Context, collection string, id string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNoOwner           = errors.New("no authenticated owner in context")
	ErrForbidden         = errors.New("row belongs to another owner")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrConflict          = errors.New("duplicate key value violates unique constraint")
	ErrMissingID         = errors.New("record id is required")
)
