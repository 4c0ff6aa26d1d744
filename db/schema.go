package db

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-faker/faker/v4"
)

// Table names used by the benchmark. metadata_items is the long-lived table
// both engines read and update; the rest are scratch tables created for a
// run and dropped afterwards.
const (
	TableMetadataItems  = "metadata_items"
	TableStressMetadata = "stress_metadata"
	TableStressProgress = "stress_progress"
	TableScan           = "mp_stress_scan"
	TableProgress       = "mp_stress_progress"
)

// DefaultSeedItems is how many metadata_items rows Setup creates, giving
// the updaters and readers realistic random-id targets.
const DefaultSeedItems = 5000

// MediaItem is a metadata_items row.
type MediaItem struct {
	ID        int64   `db:"id" faker:"-"`
	Title     string  `db:"title" faker:"sentence"`
	Summary   string  `db:"summary" faker:"paragraph"`
	Rating    float64 `db:"rating" faker:"-"`
	Duration  int64   `db:"duration" faker:"-"`
	AddedAt   float64 `db:"added_at" faker:"-"`
	UpdatedAt float64 `db:"updated_at" faker:"-"`
}

// GenerateItems fakes n metadata rows.
func GenerateItems(n int) ([]*MediaItem, error) {
	now := float64(time.Now().Unix())

	items := make([]*MediaItem, 0, n)
	for i := 0; i < n; i++ {
		it := &MediaItem{}
		if err := faker.FakeData(it); err != nil {
			return nil, fmt.Errorf("fake media item, %w", err)
		}
		it.Rating = 1 + 9*rand.Float64()
		it.Duration = int64(3600000 + rand.Intn(7200000))
		it.AddedAt = now
		it.UpdatedAt = now
		items = append(items, it)
	}
	return items, nil
}

var sqliteDDL = map[string]string{
	TableMetadataItems: `CREATE TABLE IF NOT EXISTS metadata_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT,
		summary TEXT,
		rating REAL,
		duration INTEGER,
		added_at REAL,
		updated_at REAL
	)`,
	TableStressMetadata: `CREATE TABLE IF NOT EXISTS stress_metadata (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guid TEXT,
		title TEXT,
		summary TEXT,
		duration INTEGER,
		added_at REAL,
		updated_at REAL
	)`,
	TableStressProgress: `CREATE TABLE IF NOT EXISTS stress_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		metadata_id INTEGER,
		view_offset INTEGER,
		updated_at REAL
	)`,
	TableScan: `CREATE TABLE IF NOT EXISTS mp_stress_scan (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guid TEXT,
		title TEXT,
		added_at REAL
	)`,
	TableProgress: `CREATE TABLE IF NOT EXISTS mp_stress_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER,
		view_offset INTEGER,
		updated_at REAL
	)`,
}

// pgDDL templates take the schema-qualified table name.
var pgDDL = map[string]string{
	TableMetadataItems: `CREATE TABLE IF NOT EXISTS %s (
		id SERIAL PRIMARY KEY,
		title TEXT,
		summary TEXT,
		rating DOUBLE PRECISION,
		duration BIGINT,
		added_at DOUBLE PRECISION,
		updated_at DOUBLE PRECISION
	)`,
	TableStressMetadata: `CREATE TABLE IF NOT EXISTS %s (
		id SERIAL PRIMARY KEY,
		guid TEXT,
		title TEXT,
		summary TEXT,
		duration BIGINT,
		added_at DOUBLE PRECISION,
		updated_at DOUBLE PRECISION
	)`,
	TableStressProgress: `CREATE TABLE IF NOT EXISTS %s (
		id SERIAL PRIMARY KEY,
		metadata_id INTEGER,
		view_offset INTEGER,
		updated_at DOUBLE PRECISION
	)`,
	TableScan: `CREATE TABLE IF NOT EXISTS %s (
		id SERIAL PRIMARY KEY,
		guid TEXT,
		title TEXT,
		added_at DOUBLE PRECISION
	)`,
	TableProgress: `CREATE TABLE IF NOT EXISTS %s (
		id SERIAL PRIMARY KEY,
		item_id INTEGER,
		view_offset INTEGER,
		updated_at DOUBLE PRECISION
	)`,
}

const insertItemSQL = `INSERT INTO %s (title, summary, rating, duration, added_at, updated_at)
	VALUES (:title, :summary, :rating, :duration, :added_at, :updated_at)`

// EnsureTable creates the named benchmark table if it does not exist.
func (s *SQLite) EnsureTable(ctx context.Context, name string) error {
	ddl, ok := sqliteDDL[name]
	if !ok {
		return fmt.Errorf("unknown table %q", name)
	}
	_, err := s.ExecContext(ctx, ddl)
	return err
}

// CountItems returns the metadata_items row count.
func (s *SQLite) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := s.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+TableMetadataItems)
	return n, err
}

// Setup creates metadata_items and seeds it in a single transaction. An
// already-populated table is left alone so repeated runs against the same
// file do not grow it.
func (s *SQLite) Setup(ctx context.Context, items []*MediaItem) error {
	if err := s.EnsureTable(ctx, TableMetadataItems); err != nil {
		return fmt.Errorf("create metadata_items, %w", err)
	}
	if n, err := s.CountItems(ctx); err != nil {
		return err
	} else if n > 0 {
		return nil
	}

	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(insertItemSQL, TableMetadataItems)
	for _, it := range items {
		if _, err := tx.NamedExecContext(ctx, query, it); err != nil {
			tx.Rollback()
			return fmt.Errorf("seed metadata_items, %w", err)
		}
	}
	return tx.Commit()
}

// DropScratch removes the per-run scratch tables, keeping metadata_items.
func (s *SQLite) DropScratch(ctx context.Context) error {
	for _, name := range []string{TableStressMetadata, TableStressProgress, TableScan, TableProgress} {
		if _, err := s.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return fmt.Errorf("drop %s, %w", name, err)
		}
	}
	return nil
}

// EnsureSchema creates the benchmark schema.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+p.schema)
	return err
}

// EnsureTable creates the named benchmark table if it does not exist.
func (p *Postgres) EnsureTable(ctx context.Context, name string) error {
	ddl, ok := pgDDL[name]
	if !ok {
		return fmt.Errorf("unknown table %q", name)
	}
	_, err := p.ExecContext(ctx, fmt.Sprintf(ddl, p.Table(name)))
	return err
}

// CountItems returns the metadata_items row count.
func (p *Postgres) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := p.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+p.Table(TableMetadataItems))
	return n, err
}

// Setup creates the schema plus metadata_items, and seeds it. An
// already-populated table is left alone.
func (p *Postgres) Setup(ctx context.Context, items []*MediaItem) error {
	if err := p.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("create schema, %w", err)
	}
	if err := p.EnsureTable(ctx, TableMetadataItems); err != nil {
		return fmt.Errorf("create metadata_items, %w", err)
	}
	if n, err := p.CountItems(ctx); err != nil {
		return err
	} else if n > 0 {
		return nil
	}

	tx, err := p.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(insertItemSQL, p.Table(TableMetadataItems))
	for _, it := range items {
		if _, err := tx.NamedExecContext(ctx, query, it); err != nil {
			tx.Rollback()
			return fmt.Errorf("seed metadata_items, %w", err)
		}
	}
	return tx.Commit()
}

// DropScratch removes the per-run scratch tables. The parent does this
// before and after a process-mode run so children never race on DDL.
func (p *Postgres) DropScratch(ctx context.Context) error {
	for _, name := range []string{TableStressMetadata, TableStressProgress, TableScan, TableProgress} {
		if _, err := p.ExecContext(ctx, "DROP TABLE IF EXISTS "+p.Table(name)+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s, %w", name, err)
		}
	}
	return nil
}
