package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"golang.org/x/exp/slog"

	"mediabench/bench"
	"mediabench/db"
	"mediabench/report"
	"mediabench/workload"
)

type cmdMultiproc struct {
	sharedConfig
	Duration time.Duration `long:"duration" default:"15s" description:"How long each engine section runs"`
}

func addMultiprocCmd(parser *flags.Parser) error {
	_, err := parser.AddCommand("multiproc", "Multi-process stress test", `
Runs the scanner, Kometa, PMM, and N playback streams each as a SEPARATE
operating system process, all hammering the same database.

This reproduces the deployment reality: the media server, its companion
metadata tools, and every stream are independent processes. SQLite permits
one writer across ALL of them; with a zero busy timeout every contended
write fails immediately. PostgreSQL's MVCC lets all processes write at once.

The parent re-executes its own binary once per worker; each child prints a
single JSON result line that the parent folds into the report.
`, &cmdMultiproc{})
	return err
}

func (cmd *cmdMultiproc) Execute([]string) error {
	initLog(cmd.LogLevel)

	ctx := context.Background()
	runID := uuid.NewString()

	cfg, cleanup, err := cmd.workloadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate own binary, %w", err)
	}

	var sections []report.EngineResults
	for _, engine := range []workload.Engine{workload.EngineSQLite, workload.EnginePostgres} {
		section, err := cmd.runEngine(ctx, exe, runID, engine, cfg)
		if err != nil {
			slog.Error("section skipped", "engine", engine, "err", err)
			continue
		}
		report.PrintWorkers(os.Stdout, section)
		sections = append(sections, section)
	}

	report.PrintSummary(os.Stdout, sections...)
	return nil
}

func (cmd *cmdMultiproc) runEngine(ctx context.Context, exe, runID string, engine workload.Engine, cfg workload.Config) (report.EngineResults, error) {
	var name string
	switch engine {
	case workload.EngineSQLite:
		name = "SQLite"
		// Scratch tables are pre-created so children with zero busy
		// timeouts never race each other on DDL at startup.
		if err := prepareSQLite(ctx, cfg, db.TableScan, db.TableProgress); err != nil {
			return report.EngineResults{}, err
		}
		defer cleanupSQLite(ctx, cfg)
	case workload.EnginePostgres:
		name = "PostgreSQL"
		// The parent owns all PostgreSQL DDL so children never race on it.
		if err := preparePostgres(ctx, cfg, db.TableScan, db.TableProgress); err != nil {
			return report.EngineResults{}, err
		}
		defer cleanupPostgres(ctx, cfg)
	}

	return cmd.spawn(ctx, exe, engine, name, runID, cfg), nil
}

// spawn launches one child process per role and fans their results back in.
func (cmd *cmdMultiproc) spawn(ctx context.Context, exe string, engine workload.Engine, name, runID string, cfg workload.Config) report.EngineResults {
	roles := workload.MultiprocRoles(cfg.Streams)
	slog.Info("spawning worker processes",
		"engine", name, "workers", len(roles), "duration", cmd.Duration)

	// Children exit on their own after the duration; the deadline is a
	// backstop against a hung child.
	spawnCtx, cancel := context.WithTimeout(ctx, cmd.Duration+30*time.Second)
	defer cancel()

	results := make([]bench.Result, len(roles))
	start := time.Now()

	var wg sync.WaitGroup
	for i, role := range roles {
		wg.Add(1)

		go func(i int, role string) {
			defer wg.Done()
			results[i] = cmd.runChild(spawnCtx, exe, engine, role, runID, cfg)
		}(i, role)
	}
	wg.Wait()

	return report.EngineResults{
		Engine:  name,
		Results: results,
		Elapsed: time.Since(start),
	}
}

// runChild executes one worker process and decodes the JSON result line it
// prints. A crashed child becomes an error Result, not a failed run.
func (cmd *cmdMultiproc) runChild(ctx context.Context, exe string, engine workload.Engine, role, runID string, cfg workload.Config) bench.Result {
	args := []string{
		"worker",
		"--engine", string(engine),
		"--role", role,
		"--run-id", runID,
		"--duration", cmd.Duration.String(),
		"--items", strconv.Itoa(cfg.Items),
		"--sqlite-path", cfg.SQLitePath,
		"--sqlite-driver", cfg.SQLiteDriver,
		"--log-level", cmd.LogLevel,
	}

	c := exec.CommandContext(ctx, exe, args...)
	c.Env = append(os.Environ(), pgEnv(cfg.PG)...)
	c.Stderr = os.Stderr

	out, err := c.Output()
	if err != nil {
		slog.Error("worker process failed", "role", role, "err", err)
		return bench.Result{
			RunID:  runID,
			Worker: role,
			Err:    fmt.Sprintf("worker process, %v", err),
		}
	}

	res, err := bench.DecodeResult(lastLine(out))
	if err != nil {
		return bench.Result{RunID: runID, Worker: role, Err: err.Error()}
	}
	return res
}

func lastLine(out []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	return lines[len(lines)-1]
}

// pgEnv hands the PostgreSQL config down to a child through the same env
// bindings its own flags parse.
func pgEnv(cfg db.PGConfig) []string {
	return []string{
		"PLEX_PG_HOST=" + cfg.Host,
		fmt.Sprintf("PLEX_PG_PORT=%d", cfg.Port),
		"PLEX_PG_DATABASE=" + cfg.Database,
		"PLEX_PG_USER=" + cfg.User,
		"PLEX_PG_PASSWORD=" + cfg.Password,
		"PLEX_PG_SCHEMA=" + cfg.Schema,
	}
}
