package backend

import (
	"context"
	"fmt"

	"hisab/internal/log"
	"hisab/internal/store/memory"
	"hisab/internal/store/postgres"
	"hisab/internal/store/sqlite"
)

// DefaultFactory implements Factory for the bundled providers.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.WithComponent(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLite:
		s, err := sqlite.Open(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{Store: s, Cleanup: s.Close}, nil

	case Postgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return &Result{Store: s, Cleanup: s.Close}, nil

	default:
		f.logger.Warn("Using in-memory backend, data is lost on restart")
		s := memory.New()
		return &Result{Store: s, Cleanup: s.Close}, nil
	}
}
