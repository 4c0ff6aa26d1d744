package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/slog"

	"mediabench/db"
	"mediabench/workload"
)

// sharedConfig holds the flags common to both run modes.
type sharedConfig struct {
	Streams      int    `long:"streams" default:"4" description:"Concurrent playback streams"`
	Items        int    `long:"items" default:"5000" description:"metadata_items rows to seed"`
	SQLitePath   string `long:"sqlite-path" description:"SQLite database file (default: a temp file)"`
	SQLiteDriver string `long:"sqlite-driver" default:"sqlite" choice:"sqlite" choice:"sqlite3" description:"SQLite driver (sqlite is pure Go, sqlite3 is cgo)"`
	LogLevel     string `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Logging level"`

	PG db.PGConfig `group:"PostgreSQL"`
}

// workloadConfig resolves shared flags into a workload.Config. When no
// sqlite path was given, a temp database is created and cleanup removes it.
func (c sharedConfig) workloadConfig() (cfg workload.Config, cleanup func(), err error) {
	cleanup = func() {}

	path := c.SQLitePath
	if path == "" {
		dir, err := os.MkdirTemp("", "mediabench-*")
		if err != nil {
			return cfg, cleanup, fmt.Errorf("make temp dir, %w", err)
		}
		path = filepath.Join(dir, "media.db")
		cleanup = func() { os.RemoveAll(dir) }
	}

	return workload.Config{
		SQLitePath:   path,
		SQLiteDriver: c.SQLiteDriver,
		Items:        c.Items,
		Streams:      c.Streams,
		PG:           c.PG,
	}, cleanup, nil
}

// prepareSQLite seeds metadata_items and pre-creates the given scratch
// tables. The setup connection gets a generous busy timeout; only the
// benchmark workers run with the aggressive ones.
func prepareSQLite(ctx context.Context, cfg workload.Config, tables ...string) error {
	conn, err := db.OpenSQLite(cfg.SQLiteDriver, cfg.SQLitePath, db.Pragma{BusyTimeout: 5000})
	if err != nil {
		return err
	}
	defer conn.Close()

	items, err := db.GenerateItems(cfg.Items)
	if err != nil {
		return err
	}
	if err := conn.Setup(ctx, items); err != nil {
		return err
	}
	for _, t := range tables {
		if err := conn.EnsureTable(ctx, t); err != nil {
			return fmt.Errorf("create %s, %w", t, err)
		}
	}
	return nil
}

// cleanupSQLite drops the scratch tables after a section.
func cleanupSQLite(ctx context.Context, cfg workload.Config) {
	conn, err := db.OpenSQLite(cfg.SQLiteDriver, cfg.SQLitePath, db.Pragma{BusyTimeout: 5000})
	if err != nil {
		slog.Warn("sqlite cleanup skipped", "err", err)
		return
	}
	defer conn.Close()

	if err := conn.DropScratch(ctx); err != nil {
		slog.Warn("sqlite cleanup failed", "err", err)
	}
}

// preparePostgres connects, drops stale scratch tables, seeds
// metadata_items, and pre-creates the given scratch tables. Children and
// worker goroutines never run DDL against PostgreSQL.
func preparePostgres(ctx context.Context, cfg workload.Config, tables ...string) error {
	conn, err := db.OpenPostgres(cfg.PG)
	if err != nil {
		return err
	}
	defer conn.Close()

	items, err := db.GenerateItems(cfg.Items)
	if err != nil {
		return err
	}
	if err := conn.Setup(ctx, items); err != nil {
		return err
	}
	if err := conn.DropScratch(ctx); err != nil {
		return err
	}
	for _, t := range tables {
		if err := conn.EnsureTable(ctx, t); err != nil {
			return fmt.Errorf("create %s, %w", t, err)
		}
	}
	return nil
}

// cleanupPostgres drops the scratch tables after a section.
func cleanupPostgres(ctx context.Context, cfg workload.Config) {
	conn, err := db.OpenPostgres(cfg.PG)
	if err != nil {
		slog.Warn("postgresql cleanup skipped", "err", err)
		return
	}
	defer conn.Close()

	if err := conn.DropScratch(ctx); err != nil {
		slog.Warn("postgresql cleanup failed", "err", err)
	}
}
