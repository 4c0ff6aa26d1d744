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

// SQLiteScanner emulates the library scanner: batches of inserts under an
// exclusive transaction, holding the whole-database write lock for the
// length of each batch.
type SQLiteScanner struct {
	SQLiteWorker
	Table string
	Batch int
}

func (s *SQLiteScanner) Run(ctx context.Context) (bench.Totals, error) {
	var c bench.Counters

	conn, err := s.open()
	if err != nil {
		return c.Snapshot(), err
	}
	defer conn.Close()

	// A competing worker can hold the write lock for a long stretch at
	// startup, so lock errors here retry until the window closes.
	for {
		err := conn.EnsureTable(ctx, s.Table)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return c.Snapshot(), nil
		}
		if !bench.IsLockError(err) {
			return c.Snapshot(), fmt.Errorf("create %s, %w", s.Table, err)
		}
		if !pause(ctx, 10*time.Millisecond) {
			return c.Snapshot(), nil
		}
	}

	query, args := scanInsert(s.Table, s.Table)
	for {
		err := conn.ExclusiveTx(ctx, func(cx *sqlx.Conn) error {
			for i := 0; i < s.Batch; i++ {
				if _, err := cx.ExecContext(ctx, query, args()...); err != nil {
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

// SQLiteMetadataUpdater emulates Kometa or PMM batch-updating
// metadata_items: a competing exclusive writer.
type SQLiteMetadataUpdater struct {
	SQLiteWorker
	Batch int
	Items int
}

func (u *SQLiteMetadataUpdater) Run(ctx context.Context) (bench.Totals, error) {
	var c bench.Counters

	conn, err := u.open()
	if err != nil {
		return c.Snapshot(), err
	}
	defer conn.Close()

	query := fmt.Sprintf(updateItemSQL, db.TableMetadataItems)
	for {
		err := conn.ExclusiveTx(ctx, func(cx *sqlx.Conn) error {
			for i := 0; i < u.Batch; i++ {
				if _, err := cx.ExecContext(ctx, query, epoch(), randItemID(u.Items)); err != nil {
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

// SQLitePlayback emulates an active stream: a metadata read plus a watch
// progress insert per poll. Reads and writes are counted apart because a
// failed read is a visible playback stall. When ScanTable is set the
// stream also reads a random freshly-scanned row each poll, the way
// playback picks up items mid-scan.
type SQLitePlayback struct {
	SQLiteWorker
	ProgressTable string
	ScanTable     string
	Items         int
}

func (p *SQLitePlayback) Run(ctx context.Context) (bench.Totals, error) {
	var c bench.Counters

	conn, err := p.open()
	if err != nil {
		return c.Snapshot(), err
	}
	defer conn.Close()

	// Best effort: another stream may hold the lock, in which case our
	// inserts will fail and be counted anyway.
	_ = conn.EnsureTable(ctx, p.ProgressTable)

	selectQuery := fmt.Sprintf(selectItemSQL, db.TableMetadataItems)
	insertQuery, insertArgs := progressInsert(p.ProgressTable, p.ProgressTable)

	var scanQuery string
	if p.ScanTable != "" {
		scanQuery = fmt.Sprintf(selectScanSQL, p.ScanTable)
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

// SQLiteWorker is the common sqlite worker configuration: every worker
// opens its own single-connection handle, like one application process
// holding one sqlite3 handle.
type SQLiteWorker struct {
	WorkerName string
	Path       string
	Driver     string
	Pragma     db.Pragma
	Pause      time.Duration
}

func (w SQLiteWorker) Name() string { return w.WorkerName }

func (w SQLiteWorker) open() (*db.SQLite, error) {
	conn, err := db.OpenSQLite(w.Driver, w.Path, w.Pragma)
	if err != nil {
		return nil, fmt.Errorf("open sqlite, %w", err)
	}
	return conn, nil
}
