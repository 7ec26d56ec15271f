// Package postgres is the hosted SQL store provider built on pgxpool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"hisab/internal/log"
	"hisab/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to databaseURL and runs migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: log.WithComponent(log.ComponentStorage)}, nil
}

// RunMigrations applies the embedded migrations through the pgx5 driver.
func RunMigrations(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, scheme) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, scheme)
		}
	}
	return databaseURL
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
	if _, err := s.pool.Exec(ctx, st.SQL, st.Args...); err != nil {
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

	rows, err := s.pool.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
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
	tag, err := s.pool.Exec(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
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
	tag, err := s.pool.Exec(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
		case "22P02":
			// Malformed uuid in a filter cannot match any row.
			return fmt.Errorf("invalid input: %w", err)
		}
	}
	return err
}

// dialect binds non-text values as text and casts them server side, so the
// driver never has to encode decimals or dates itself.
type dialect struct{}

func (dialect) Placeholder(n int, col store.Column) string {
	switch col.Kind {
	case store.KindUUID:
		return fmt.Sprintf("$%d::text::uuid", n)
	case store.KindDecimal:
		return fmt.Sprintf("$%d::text::numeric", n)
	case store.KindDate:
		return fmt.Sprintf("$%d::text::date", n)
	case store.KindTime:
		return fmt.Sprintf("$%d::timestamptz", n)
	default:
		return fmt.Sprintf("$%d::text", n)
	}
}

func (dialect) SelectExpr(col store.Column) string {
	switch col.Kind {
	case store.KindUUID, store.KindDecimal, store.KindDate:
		return col.Name + "::text"
	default:
		return col.Name
	}
}

func (dialect) Encode(_ store.Column, v any) (any, error) {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String(), nil
	}
	return v, nil
}
