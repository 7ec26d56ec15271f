// Package memory is an in-process mirror sheet, used for dry runs of the
// worker and in tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	ports "hisab/internal/sheets"
)

type Sheet struct {
	mu   sync.Mutex
	name string
	rows []ports.Row
}

var (
	_ ports.RowAppender  = (*Sheet)(nil)
	_ ports.HeaderWriter = (*Sheet)(nil)
)

func New(name string) *Sheet {
	if name == "" {
		name = "Ledger"
	}
	return &Sheet{name: name}
}

// EnsureHeader writes the header as the first row of an empty sheet.
func (s *Sheet) EnsureHeader(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		s.rows = append(s.rows, slices.Clone(ports.Header))
	}
	return nil
}

// AppendRow stores the row and returns a reference in A1 notation.
func (s *Sheet) AppendRow(_ context.Context, row ports.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, slices.Clone(row))
	n := len(s.rows)
	return fmt.Sprintf("%s!A%d:%c%d", s.name, n, 'A'+len(ports.Header)-1, n), nil
}

// Rows returns a copy of every row, header included.
func (s *Sheet) Rows() []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = slices.Clone(r)
	}
	return out
}
