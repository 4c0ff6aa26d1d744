package workload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"mediabench/bench"
	"mediabench/db"
)

// PGScanner is the scanner against PostgreSQL: the same batched inserts,
// but in ordinary transactions since MVCC needs no exclusive lock.
type PGScanner struct {
	PGWorker
	Table string
	Batch int
}

func (s *PGScanner) Run(ctx context.Context) (bench.Totals, error) {
	var c bench.Counters

	conn, err := s.open()
	if err != nil {
		return c.Snapshot(), err
	}
	defer conn.Close()

	query, args := scanInsert(s.Table, conn.Table(s.Table))
	query = conn.Rebind(query)

	for {
		err := inTx(ctx, conn.DB, func(tx *sqlx.Tx) error {
			for i := 0; i < s.Batch; i++ {
				if _, err := tx.ExecContext(ctx, query, args()...); err != nil {
					return err
				}
			}
			return nil
		})
		if ctx.Err() != nil {
			return c.Snapshot(), nil
		}
		c.Write(int64(s.Batch), err)

		if !pause(ctx, s.Pause) {
			return c.Snapshot(), nil
		}
	}
}

// PGMetadataUpdater is the Kometa/PMM competing writer against PostgreSQL.
type PGMetadataUpdater struct {
	PGWorker
	Batch int
	Items int
}

func (u *PGMetadataUpdater) Run(ctx context.Context) (bench.Totals, error) {
	var c bench.Counters

	conn, err := u.open()
	if err != nil {
		return c.Snapshot(), err
	}
	defer conn.Close()

	query := conn.Rebind(fmt.Sprintf(updateItemSQL, conn.Table(db.TableMetadataItems)))

	for {
		err := inTx(ctx, conn.DB, func(tx *sqlx.Tx) error {
			for i := 0; i < u.Batch; i++ {
				if _, err := tx.ExecContext(ctx, query, epoch(), randItemID(u.Items)); err != nil {
					return err
				}
			}
			return nil
		})
		if ctx.Err() != nil {
			return c.Snapshot(), nil
		}
		c.Write(int64(u.Batch), err)

		if !pause(ctx, u.Pause) {
			return c.Snapshot(), nil
		}
	}
}

// PGPlayback is the playback stream against PostgreSQL. ScanTable, when
// set, adds the per-poll read of a random freshly-scanned row.
type PGPlayback struct {
	PGWorker
	ProgressTable string
	ScanTable     string
	Items         int
}

func (p *PGPlayback) Run(ctx context.Context) (bench.Totals, error) {
	var c bench.Counters

	conn, err := p.open()
	if err != nil {
		return c.Snapshot(), err
	}
	defer conn.Close()

	selectQuery := conn.Rebind(fmt.Sprintf(selectItemSQL, conn.Table(db.TableMetadataItems)))
	insertQuery, insertArgs := progressInsert(p.ProgressTable, conn.Table(p.ProgressTable))
	insertQuery = conn.Rebind(insertQuery)

	var scanQuery string
	if p.ScanTable != "" {
		scanQuery = fmt.Sprintf(selectScanSQL, conn.Table(p.ScanTable))
	}

	for {
		if scanQuery != "" {
			row := db.MediaItem{}
			err := conn.GetContext(ctx, &row, scanQuery)
			if errors.Is(err, sql.ErrNoRows) {
				err = nil
			}
			if ctx.Err() != nil {
				return c.Snapshot(), nil
			}
			c.Read(1, err)
		}

		item := db.MediaItem{}
		err := conn.GetContext(ctx, &item, selectQuery, randItemID(p.Items))
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
		}
		if ctx.Err() != nil {
			return c.Snapshot(), nil
		}
		c.Read(1, err)

		_, err = conn.ExecContext(ctx, insertQuery, insertArgs()...)
		if ctx.Err() != nil {
			return c.Snapshot(), nil
		}
		c.Write(1, err)

		if !pause(ctx, p.Pause) {
			return c.Snapshot(), nil
		}
	}
}

// PGWorker is the common PostgreSQL worker configuration. Each worker holds
// its own connection, mirroring one application process with one session.
type PGWorker struct {
	WorkerName string
	Config     db.PGConfig
	Pause      time.Duration
}

func (w PGWorker) Name() string { return w.WorkerName }

func (w PGWorker) open() (*db.Postgres, error) {
	conn, err := db.OpenPostgres(w.Config)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

func inTx(ctx context.Context, d *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
