package workload

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabench/bench"
	"mediabench/db"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	cfg := Config{
		SQLitePath:   filepath.Join(t.TempDir(), "media.db"),
		SQLiteDriver: db.DriverModernc,
		Items:        50,
		Streams:      2,
	}

	conn, err := db.OpenSQLite(cfg.SQLiteDriver, cfg.SQLitePath, db.Pragma{BusyTimeout: 5000})
	require.NoError(t, err)
	defer conn.Close()

	items, err := db.GenerateItems(cfg.Items)
	require.NoError(t, err)
	require.NoError(t, conn.Setup(context.Background(), items))
	return cfg
}

func TestStressWorkersComposition(t *testing.T) {
	cfg := Config{Streams: 4, Items: 100}

	workers := StressWorkers(EngineSQLite, cfg)
	require.Len(t, workers, 7, "2 scanners + kometa + 4 streams")
	assert.Equal(t, "scanner-0", workers[0].Name())
	assert.Equal(t, "kometa", workers[2].Name())
	assert.Equal(t, "stream-3", workers[6].Name())
	assert.Equal(t, db.TableStressMetadata, workers[3].(*SQLitePlayback).ScanTable)

	workers = StressWorkers(EnginePostgres, cfg)
	require.Len(t, workers, 7)
	assert.IsType(t, &PGScanner{}, workers[0])
	assert.IsType(t, &PGMetadataUpdater{}, workers[2])
	assert.IsType(t, &PGPlayback{}, workers[3])

	assert.Empty(t, StressWorkers(Engine("mysql"), cfg))
}

func TestMultiprocRoles(t *testing.T) {
	roles := MultiprocRoles(2)
	assert.Equal(t, []string{"scanner", "kometa", "pmm", "stream-0", "stream-1"}, roles)
}

func TestMultiprocWorkerMapping(t *testing.T) {
	cfg := Config{SQLitePath: "media.db", SQLiteDriver: db.DriverModernc, Items: 100}

	w, err := MultiprocWorker(EngineSQLite, "scanner", cfg)
	require.NoError(t, err)
	scanner := w.(*SQLiteScanner)
	assert.Equal(t, db.TableScan, scanner.Table)
	assert.Equal(t, 50, scanner.Batch)
	assert.Zero(t, scanner.Pragma.BusyTimeout, "contended writes must fail immediately")

	w, err = MultiprocWorker(EngineSQLite, "pmm", cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteMetadataUpdater{}, w)
	assert.Equal(t, "pmm", w.Name())

	w, err = MultiprocWorker(EngineSQLite, "stream-3", cfg)
	require.NoError(t, err)
	playback := w.(*SQLitePlayback)
	assert.Equal(t, db.TableProgress, playback.ProgressTable)

	w, err = MultiprocWorker(EnginePostgres, "kometa", cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, w.(*PGMetadataUpdater).Batch)

	w, err = MultiprocWorker(EnginePostgres, "pmm", cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, w.(*PGMetadataUpdater).Batch)

	_, err = MultiprocWorker(EngineSQLite, "transcoder", cfg)
	assert.Error(t, err)

	_, err = MultiprocWorker(Engine("mysql"), "scanner", cfg)
	assert.Error(t, err)
}

func TestSQLiteWorkersProduceWork(t *testing.T) {
	cfg := testConfig(t)

	scanner, err := MultiprocWorker(EngineSQLite, "scanner", cfg)
	require.NoError(t, err)
	stream, err := MultiprocWorker(EngineSQLite, "stream-0", cfg)
	require.NoError(t, err)
	updater, err := MultiprocWorker(EngineSQLite, "kometa", cfg)
	require.NoError(t, err)

	results := bench.Run(context.Background(), "test", 300*time.Millisecond,
		[]bench.Worker{scanner, stream, updater})
	require.Len(t, results, 3)

	for _, r := range results {
		assert.Empty(t, r.Err, r.Worker)
	}

	totals := bench.Sum(results)
	assert.Greater(t, totals.Ops()+totals.Errors(), int64(0),
		"workers must attempt operations within the window")
}

func TestScannerOutwaitsStartupLock(t *testing.T) {
	cfg := testConfig(t)

	holder, err := db.OpenSQLite(cfg.SQLiteDriver, cfg.SQLitePath, db.Pragma{BusyTimeout: 5000})
	require.NoError(t, err)
	defer holder.Close()

	// A sibling holds the write lock across the scanner's startup, the
	// way a long scan batch does.
	held := make(chan struct{})
	released := make(chan error, 1)
	go func() {
		released <- holder.ExclusiveTx(context.Background(), func(cx *sqlx.Conn) error {
			close(held)
			time.Sleep(100 * time.Millisecond)
			return nil
		})
	}()
	<-held

	scanner := &SQLiteScanner{
		SQLiteWorker: SQLiteWorker{
			WorkerName: "scanner",
			Path:       cfg.SQLitePath,
			Driver:     cfg.SQLiteDriver,
			Pause:      time.Millisecond,
		},
		Table: db.TableScan,
		Batch: 10,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	totals, err := scanner.Run(ctx)
	require.NoError(t, err, "scanner must retry past the held lock, not give up")
	assert.Greater(t, totals.Writes, int64(0))
	require.NoError(t, <-released)
}

func TestPlaybackCountsReadsAndWrites(t *testing.T) {
	cfg := testConfig(t)

	stream := &SQLitePlayback{
		SQLiteWorker: SQLiteWorker{
			WorkerName: "stream-0",
			Path:       cfg.SQLitePath,
			Driver:     cfg.SQLiteDriver,
			Pragma:     db.Pragma{BusyTimeout: 1000},
		},
		ProgressTable: db.TableProgress,
		Items:         cfg.Items,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	totals, err := stream.Run(ctx)
	require.NoError(t, err)
	assert.Greater(t, totals.Reads, int64(0))
	assert.Greater(t, totals.Writes, int64(0))
	assert.Zero(t, totals.ReadErrors)
	assert.Zero(t, totals.WriteErrors)
}

func TestPlaybackReadsScanTable(t *testing.T) {
	cfg := testConfig(t)

	conn, err := db.OpenSQLite(cfg.SQLiteDriver, cfg.SQLitePath, db.Pragma{BusyTimeout: 5000})
	require.NoError(t, err)
	require.NoError(t, conn.EnsureTable(context.Background(), db.TableStressMetadata))
	require.NoError(t, conn.Close())

	stream := &SQLitePlayback{
		SQLiteWorker: SQLiteWorker{
			WorkerName: "stream-0",
			Path:       cfg.SQLitePath,
			Driver:     cfg.SQLiteDriver,
			Pragma:     db.Pragma{BusyTimeout: 1000},
		},
		ProgressTable: db.TableStressProgress,
		ScanTable:     db.TableStressMetadata,
		Items:         cfg.Items,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	totals, err := stream.Run(ctx)
	require.NoError(t, err)
	assert.Greater(t, totals.Writes, int64(0))
	assert.GreaterOrEqual(t, totals.Reads, 2*totals.Writes,
		"each poll reads both the scan table and the library")
	assert.Zero(t, totals.ReadErrors)
}

func TestRandItemIDClampsEmptyLibrary(t *testing.T) {
	assert.Equal(t, int64(1), randItemID(0))
	assert.Equal(t, int64(1), randItemID(-3))
	id := randItemID(50)
	assert.GreaterOrEqual(t, id, int64(1))
	assert.LessOrEqual(t, id, int64(50))
}

func TestWorkerReportsOpenFailure(t *testing.T) {
	scanner := &SQLiteScanner{
		SQLiteWorker: SQLiteWorker{
			WorkerName: "scanner",
			Path:       filepath.Join(t.TempDir(), "missing", "media.db"),
			Driver:     db.DriverModernc,
		},
		Table: db.TableScan,
		Batch: 10,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := scanner.Run(ctx)
	assert.Error(t, err)
}

func TestScanInsertShapes(t *testing.T) {
	query, args := scanInsert(db.TableScan, "plex.mp_stress_scan")
	assert.True(t, strings.HasPrefix(query, "INSERT INTO plex.mp_stress_scan (guid, title, added_at)"))
	assert.Len(t, args(), 3)
	assert.Equal(t, 3, strings.Count(query, "?"))

	query, args = scanInsert(db.TableStressMetadata, db.TableStressMetadata)
	assert.Contains(t, query, "summary")
	assert.Len(t, args(), 6)
	assert.Equal(t, 6, strings.Count(query, "?"))
}

func TestProgressInsertShapes(t *testing.T) {
	query, args := progressInsert(db.TableProgress, db.TableProgress)
	assert.Contains(t, query, "item_id")
	assert.Len(t, args(), 3)

	query, _ = progressInsert(db.TableStressProgress, "plex.stress_progress")
	assert.Contains(t, query, "metadata_id")
	assert.Contains(t, query, "plex.stress_progress")
}

func TestPause(t *testing.T) {
	ctx := context.Background()
	assert.True(t, pause(ctx, 0))
	assert.True(t, pause(ctx, time.Millisecond))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, pause(canceled, 0))
	assert.False(t, pause(canceled, time.Hour))
}
