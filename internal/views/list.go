// Package views holds per-user view state for the dashboard, the lists and
// the entry forms.
package views

import (
	"context"
	"sync"
)

// loader keeps the last loaded value of a view. Every load is tagged with a
// generation; only the completion of the newest load is applied, so an older
// fetch that finishes late cannot overwrite fresher data.
type loader[V any] struct {
	mu      sync.Mutex
	fetch   func(ctx context.Context) (V, error)
	gen     uint64
	value   V
	loading bool
	err     error
	loaded  bool
}

// Snapshot is a consistent copy of a view's state.
type Snapshot[V any] struct {
	Value   V
	Loading bool
	Err     error
	Loaded  bool
}

// Refresh fetches under ctx and returns the state after the fetch settles.
// A failed fetch keeps the previously loaded value. Views call it on mount
// and whenever a ledger event asks them to re-fetch; nothing is served from a
// cached copy, so writes from other processes show up on the next load.
func (l *loader[V]) Refresh(ctx context.Context) Snapshot[V] {
	return l.refreshWith(ctx, l.fetch)
}

func (l *loader[V]) refreshWith(ctx context.Context, fetch func(ctx context.Context) (V, error)) Snapshot[V] {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.loading = true
	l.mu.Unlock()

	value, err := fetch(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		// Superseded: the newer load owns the loading flag and the value.
		return l.snapshotLocked()
	}
	l.loading = false
	if err != nil {
		l.err = err
		return l.snapshotLocked()
	}
	l.value = value
	l.err = nil
	l.loaded = true
	return l.snapshotLocked()
}

func (l *loader[V]) Snapshot() Snapshot[V] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *loader[V]) snapshotLocked() Snapshot[V] {
	return Snapshot[V]{Value: l.value, Loading: l.loading, Err: l.err, Loaded: l.loaded}
}

// List is the state of a list view.
type List[T any] struct {
	loader[[]T]
}

func NewList[T any](fetch func(ctx context.Context) ([]T, error)) *List[T] {
	return &List[T]{loader: loader[[]T]{fetch: fetch}}
}
