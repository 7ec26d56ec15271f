// Package sqlite is the embedded SQL store provider.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"hisab/internal/log"
	"hisab/internal/store"
)

type Store struct {
	db     *sql.DB
	logger *log.Logger
}

var _ store.Store = (*Store)(nil)

// Open creates the database file if needed, runs migrations and returns a
// ready provider.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: log.WithComponent(log.ComponentStorage)}, nil
}

func (s *Store) Insert(ctx context.Context, collection string, rec store.Record) error {
	scope, err := store.Authorize(ctx, collection)
	if err != nil {
		return err
	}
	if err := scope.CheckInsert(rec); err != nil {
		return err
	}
	st, err := store.BuildInsert(dialect{}, scope.Schema, rec)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, st.SQL, st.Args...); err != nil {
		return translate(err)
	}
	s.logger.DebugContext(ctx, "Row inserted",
		log.FieldTable, collection,
		log.FieldID, rec.String(store.FieldID))
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
	st, err := store.BuildSelect(dialect{}, scope.Schema, scope.Constrain(q.Filters), q.Order)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		values := make([]any, len(scope.Schema.Columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		rec, err := store.ScanRecord(scope.Schema, values)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, collection, id string, patch store.Record, where ...store.Filter) (int64, error) {
	scope, err := store.Authorize(ctx, collection)
	if err != nil {
		return 0, err
	}
	if err := scope.CheckPatch(patch); err != nil {
		return 0, err
	}
	st, err := store.BuildUpdate(dialect{}, scope.Schema, scope.ByID(id, where...), patch)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, collection, id string) (int64, error) {
	scope, err := store.Authorize(ctx, collection)
	if err != nil {
		return 0, err
	}
	st, err := store.BuildDelete(dialect{}, scope.Schema, scope.ByID(id))
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func translate(err error) error {
	var serr *msqlite.Error
	if errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

type dialect struct{}

func (dialect) Placeholder(int, store.Column) string { return "?" }

func (dialect) SelectExpr(col store.Column) string { return col.Name }

func (dialect) Encode(_ store.Column, v any) (any, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String(), nil
	case time.Time:
		return x.UTC().Format(store.TimeLayout), nil
	}
	return v, nil
}
