package main

import (
	"context"
	"fmt"
	"log/slog"

	corecfg "github.com/xtal-lab/xtal/internal/core/config"
	"github.com/xtal-lab/xtal/internal/core/storage/postgres"
	"github.com/xtal-lab/xtal/internal/document"
	"github.com/xtal-lab/xtal/internal/document/storage"
	"github.com/xtal-lab/xtal/internal/migrations"
)

// store is a document repository that can report its health.
type store interface {
	document.Repository
	Ping(ctx context.Context) error
}

// openStore opens the configured document backend. The returned func releases it.
func openStore(c corecfg.StorageConfig) (store, func(), error) {
	noop := func() {}

	switch c.Type {
	case corecfg.StorageMemory:
		slog.Info("[Storage] Using in-memory documents; nothing is persisted")
		return storage.NewMemoryRepository(), noop, nil

	case corecfg.StorageFile:
		repo, err := storage.NewFileSystemRepository(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return repo, noop, nil

	case corecfg.StorageBadger:
		repo, err := storage.NewBadgerRepository(c.Path, c.MaxMemMB)
		if err != nil {
			return nil, nil, err
		}
		return repo, closer("badger", repo.Close), nil

	case corecfg.StoragePostgres:
		db, err := postgres.Open(c.DSN, c.MaxOpenConns, c.MaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunMigrations(db, c.AutoMigrate); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		adapter, err := postgres.NewAdapterWithDB(db)
		if err != nil {
			return nil, nil, err
		}
		return adapter, closer("postgres", adapter.Close), nil
	}
	return nil, nil, fmt.Errorf("unsupported storage.type %q", c.Type)
}

func closer(name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			slog.Error("[Storage] Failed to close store", "store", name, "error", err)
		}
	}
}
