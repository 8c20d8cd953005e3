package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datallboy/gofetch/internal/engine"
	"github.com/datallboy/gofetch/internal/infra/config"

	_ "modernc.org/sqlite"
)

// Store is what the rest of the app needs from a backend.
type Store interface {
	engine.Store
	Close() error
}

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	case config.DriverSQLite, "":
		return NewPersistentStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// PersistentStore keeps resume records and history in SQLite.
type PersistentStore struct {
	db *sql.DB
}

func NewPersistentStore(dbPath string) (*PersistentStore, error) {

	dbDir := filepath.Dir(dbPath)

	// Ensure the database directory exists
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	store := &PersistentStore{db: db}

	if err := store.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return store, nil
}

func (s *PersistentStore) Close() error {
	return s.db.Close()
}
