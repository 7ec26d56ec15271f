// Package backend selects and opens the store provider named in config.
package backend

import (
	"context"
	"fmt"

	"hisab/internal/config"
	"hisab/internal/store"
)

// Type names a store provider.
type Type string

const (
	Memory   Type = "memory"
	SQLite   Type = "sqlite"
	Postgres Type = "postgres"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case Memory, SQLite, Postgres:
		return true
	default:
		return false
	}
}

// Types returns every supported provider.
func Types() []Type {
	return []Type{Memory, SQLite, Postgres}
}

// Config holds what the factory needs to open a provider.
type Config struct {
	Type         Type
	SQLiteDBPath string
	DatabaseURL  string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := Config{
		Type:         Type(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Type {
	case SQLite:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case Postgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case Memory:
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	return nil
}

// CleanupFunc releases provider resources.
type CleanupFunc func() error

// Result is an opened provider and its cleanup.
type Result struct {
	Store   store.Store
	Cleanup CleanupFunc
}

// Factory opens store providers.
type Factory interface {
	Create(ctx context.Context, cfg Config) (*Result, error)
}
