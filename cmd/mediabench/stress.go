package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"golang.org/x/exp/slog"

	"mediabench/bench"
	"mediabench/db"
	"mediabench/report"
	"mediabench/workload"
)

type cmdStress struct {
	sharedConfig
	Duration time.Duration `long:"duration" default:"10s" description:"How long each engine section runs"`
}

func addStressCmd(parser *flags.Parser) error {
	_, err := parser.AddCommand("stress", "Threaded scan + playback stress test", `
Runs two library scanners, a Kometa-style metadata updater, and N playback
streams as goroutines inside one process, against SQLite and then
PostgreSQL.

This is the "streaming a movie while the library scans" scenario: on SQLite
the scanner's exclusive write lock makes playback reads and watch progress
writes fail; on PostgreSQL readers and writers never block each other.
`, &cmdStress{})
	return err
}

func (cmd *cmdStress) Execute([]string) error {
	initLog(cmd.LogLevel)

	ctx := context.Background()
	runID := uuid.NewString()

	cfg, cleanup, err := cmd.workloadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	var sections []report.EngineResults
	for _, engine := range []workload.Engine{workload.EngineSQLite, workload.EnginePostgres} {
		section, err := cmd.runEngine(ctx, runID, engine, cfg)
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

func (cmd *cmdStress) runEngine(ctx context.Context, runID string, engine workload.Engine, cfg workload.Config) (report.EngineResults, error) {
	var name string
	switch engine {
	case workload.EngineSQLite:
		name = "SQLite"
		if err := prepareSQLite(ctx, cfg, db.TableStressMetadata, db.TableStressProgress); err != nil {
			return report.EngineResults{}, err
		}
		defer cleanupSQLite(ctx, cfg)
	case workload.EnginePostgres:
		name = "PostgreSQL"
		if err := preparePostgres(ctx, cfg, db.TableStressMetadata, db.TableStressProgress); err != nil {
			return report.EngineResults{}, err
		}
		defer cleanupPostgres(ctx, cfg)
	}

	workers := workload.StressWorkers(engine, cfg)
	slog.Info("running stress section",
		"engine", name, "workers", len(workers), "duration", cmd.Duration)

	start := time.Now()
	results := bench.Run(ctx, runID, cmd.Duration, workers)

	return report.EngineResults{
		Engine:  name,
		Results: results,
		Elapsed: time.Since(start),
	}, nil
}
