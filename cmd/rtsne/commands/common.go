// Package commands implements the rtsne subcommands.
package commands

import (
	"database/sql"
	"fmt"

	"github.com/teranos/rtsne/am"
	"github.com/teranos/rtsne/db"
	"github.com/teranos/rtsne/internal/backend"
	"github.com/teranos/rtsne/internal/service"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/runs"
)

// loadConfig loads and validates the effective configuration.
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openDatabase opens the run history database with migrations applied.
func openDatabase(cfg *am.Config) (*sql.DB, error) {
	return db.OpenWithMigrations(cfg.GetDatabasePath(), logger.ComponentLogger("db"))
}

// openService builds the embedding service. With record set and run
// recording enabled in config, calls are saved to the database; the returned
// close function releases it.
func openService(cfg *am.Config, record bool) (*service.Service, func(), error) {
	b, err := backend.Open(cfg.Embedding, logger.ComponentLogger("backend"))
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	var store *runs.Store
	if record && cfg.Database.RecordRuns {
		conn, err := openDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
		store = runs.NewStore(conn, logger.ComponentLogger("runs"))
		closeFn = func() { conn.Close() }
	}

	svc := service.New(b, store, backend.DefaultParams(cfg.Embedding), logger.ComponentLogger("service"))
	return svc, closeFn, nil
}
