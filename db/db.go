package db

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite is a single-connection handle to a sqlite database file. Each
// worker owns one, the way each emulated application process holds exactly
// one sqlite3 handle.
type SQLite struct {
	*sqlx.DB

	driver string
	dsn    string
}

// OpenSQLite connects to the sqlite database at path.
//
//	driver=sqlite3 uses github.com/mattn/go-sqlite3
//	driver=sqlite uses modernc.org/sqlite
func OpenSQLite(driver, path string, pragma Pragma) (*SQLite, error) {
	dsn := fmt.Sprintf("%s?%s", path, pragma.Encode(driver))

	d, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite, %w", err)
	}
	d.SetMaxOpenConns(1)

	return &SQLite{
		DB:     d.Unsafe(),
		driver: driver,
		dsn:    dsn,
	}, nil
}

// Driver returns the registered driver name the handle was opened with.
func (s *SQLite) Driver() string { return s.driver }

// DSN returns the full data source string, pragmas included.
func (s *SQLite) DSN() string { return s.dsn }

// ExclusiveTx runs fn inside BEGIN EXCLUSIVE, taking the whole-database
// write lock for the duration of the batch. Rollback after a failure is
// best-effort; the emulated scanner ignores rollback errors too.
func (s *SQLite) ExclusiveTx(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	conn, err := s.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		return err
	}
	if err := fn(conn); err != nil {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return err
	}
	return nil
}

// PGConfig locates the PostgreSQL side of the comparison. The environment
// bindings match what the migration tooling around this benchmark uses.
type PGConfig struct {
	Host     string `long:"pg-host" env:"PLEX_PG_HOST" default:"localhost" description:"PostgreSQL host"`
	Port     int    `long:"pg-port" env:"PLEX_PG_PORT" default:"5432" description:"PostgreSQL port"`
	Database string `long:"pg-database" env:"PLEX_PG_DATABASE" default:"plex" description:"PostgreSQL database"`
	User     string `long:"pg-user" env:"PLEX_PG_USER" default:"plex" description:"PostgreSQL user"`
	Password string `long:"pg-password" env:"PLEX_PG_PASSWORD" default:"plex" description:"PostgreSQL password"`
	Schema   string `long:"pg-schema" env:"PLEX_PG_SCHEMA" default:"plex" description:"PostgreSQL schema"`
}

// DSN renders the config as a pgx connection string.
func (c PGConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Database)
}

// Postgres is a handle to the PostgreSQL database, carrying the schema that
// qualifies every table reference.
type Postgres struct {
	*sqlx.DB

	schema string
}

// OpenPostgres connects via the pgx stdlib driver.
func OpenPostgres(cfg PGConfig) (*Postgres, error) {
	d, err := sqlx.Connect("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgresql, %w", err)
	}

	return &Postgres{
		DB:     d.Unsafe(),
		schema: cfg.Schema,
	}, nil
}

// Table returns the schema-qualified name for name.
func (p *Postgres) Table(name string) string {
	return p.schema + "." + name
}
