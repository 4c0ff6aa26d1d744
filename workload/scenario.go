package workload

import (
	"fmt"
	"strings"
	"time"

	"mediabench/bench"
	"mediabench/db"
)

// Engine selects which database a worker runs against.
type Engine string

const (
	EngineSQLite   Engine = "sqlite"
	EnginePostgres Engine = "postgres"
)

// Config carries everything needed to construct a worker set.
type Config struct {
	SQLitePath   string
	SQLiteDriver string
	Items        int
	Streams      int
	PG           db.PGConfig
}

// Stream mode runs everything inside one process. Writers get a short busy
// timeout, playback an even shorter one: a stream cannot afford to queue
// behind a scan batch.
const (
	stressWriterBusyMs   = 100
	stressPlaybackBusyMs = 50
)

/// StressWorkers builds the threaded scenario: two scanners, one Kometa
// updater, and N playback streams, all sharing the process.
func StressWorkers(engine Engine, cfg Config) []bench.Worker {
	var workers []bench.Worker

	switch engine {
	case EngineSQLite:
		for i := 0; i < 2; i++ {
			workers = append(workers, &SQLiteScanner{
				SQLiteWorker: cfg.sqliteWorker(fmt.Sprintf("scanner-%d", i), stressWriterBusyMs, time.Millisecond),
				Table:        db.TableStressMetadata,
				Batch:        50,
			})
		}
		workers = append(workers, &SQLiteMetadataUpdater{
			SQLiteWorker: cfg.sqliteWorker("kometa", stressWriterBusyMs, 5*time.Millisecond),
			Batch:        5,
			Items:        cfg.Items,
		})
		for i := 0; i < cfg.Streams; i++ {
			workers = append(workers, &SQLitePlayback{
				SQLiteWorker:  cfg.sqliteWorker(fmt.Sprintf("stream-%d", i), stressPlaybackBusyMs, 20*time.Millisecond),
				ProgressTable: db.TableStressProgress,
				ScanTable:     db.TableStressMetadata,
				Items:         cfg.Items,
			})
		}

	case EnginePostgres:
		for i := 0; i < 2; i++ {
			workers = append(workers, &PGScanner{
				PGWorker: cfg.pgWorker(fmt.Sprintf("scanner-%d", i), 5*time.Millisecond),
				Table:    db.TableStressMetadata,
				Batch:    10,
			})
		}
		workers = append(workers, &PGMetadataUpdater{
			PGWorker: cfg.pgWorker("kometa", 20*time.Millisecond),
			Batch:    1,
			Items:    cfg.Items,
		})
		for i := 0; i < cfg.Streams; i++ {
			workers = append(workers, &PGPlayback{
				PGWorker:      cfg.pgWorker(fmt.Sprintf("stream-%d", i), 50*time.Millisecond),
				ProgressTable: db.TableStressProgress,
				ScanTable:     db.TableStressMetadata,
				Items:         cfg.Items,
			})
		}
	}

	return workers
}

// MultiprocRoles lists the worker roles for the process scenario: one
// scanner, Kometa, PMM, and N playback streams, each in its own process.
func MultiprocRoles(streams int) []string {
	roles := []string{"scanner", "kometa", "pmm"}
	for i := 0; i < streams; i++ {
		roles = append(roles, fmt.Sprintf("stream-%d", i))
	}
	return roles
}

// MultiprocWorker builds the single worker a child process runs. SQLite
// workers run with a zero busy timeout: on contention a write fails
// immediately, like the real applications.
func MultiprocWorker(engine Engine, role string, cfg Config) (bench.Worker, error) {
	stream := strings.HasPrefix(role, "stream-")

	switch engine {
	case EngineSQLite:
		switch {
		case role == "scanner":
			return &SQLiteScanner{
				SQLiteWorker: cfg.sqliteWorker(role, 0, 0),
				Table:        db.TableScan,
				Batch:        50,
			}, nil
		case role == "kometa", role == "pmm":
			return &SQLiteMetadataUpdater{
				SQLiteWorker: cfg.sqliteWorker(role, 0, 0),
				Batch:        10,
				Items:        cfg.Items,
			}, nil
		case stream:
			return &SQLitePlayback{
				SQLiteWorker:  cfg.sqliteWorker(role, 0, 10*time.Millisecond),
				ProgressTable: db.TableProgress,
				Items:         cfg.Items,
			}, nil
		}

	case EnginePostgres:
		switch {
		case role == "scanner":
			return &PGScanner{
				PGWorker: cfg.pgWorker(role, 10*time.Millisecond),
				Table:    db.TableScan,
				Batch:    20,
			}, nil
		case role == "kometa":
			return &PGMetadataUpdater{
				PGWorker: cfg.pgWorker(role, 20*time.Millisecond),
				Batch:    5,
				Items:    cfg.Items,
			}, nil
		case role == "pmm":
			return &PGMetadataUpdater{
				PGWorker: cfg.pgWorker(role, 30*time.Millisecond),
				Batch:    3,
				Items:    cfg.Items,
			}, nil
		case stream:
			return &PGPlayback{
				PGWorker:      cfg.pgWorker(role, 50*time.Millisecond),
				ProgressTable: db.TableProgress,
				Items:         cfg.Items,
			}, nil
		}
	}

	return nil, fmt.Errorf("unknown worker role %q for engine %q", role, engine)
}

func (c Config) sqliteWorker(name string, busyMs int, pause time.Duration) SQLiteWorker {
	return SQLiteWorker{
		WorkerName: name,
		Path:       c.SQLitePath,
		Driver:     c.SQLiteDriver,
		Pragma:     db.Pragma{BusyTimeout: busyMs},
		Pause:      pause,
	}
}

func (c Config) pgWorker(name string, pause time.Duration) PGWorker {
	return PGWorker{
		WorkerName: name,
		Config:     c.PG,
		Pause:      pause,
	}
}
