package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"mediabench/bench"
	"mediabench/db"
	"mediabench/workload"
)

// cmdWorker is the hidden child-process entry point for multiproc runs. It
// runs exactly one worker and prints its Result as a JSON line on stdout.
type cmdWorker struct {
	Engine   string        `long:"engine" required:"true" choice:"sqlite" choice:"postgres" description:"Database engine"`
	Role     string        `long:"role" required:"true" description:"Worker role (scanner, kometa, pmm, stream-N)"`
	RunID    string        `long:"run-id" description:"Run id assigned by the parent"`
	Duration time.Duration `long:"duration" default:"15s" description:"How long to run"`
	Items    int           `long:"items" default:"5000" description:"Seeded metadata_items rows"`

	SQLitePath   string `long:"sqlite-path" description:"SQLite database file"`
	SQLiteDriver string `long:"sqlite-driver" default:"sqlite" description:"SQLite driver"`
	LogLevel     string `long:"log-level" default:"info" description:"Logging level"`

	PG db.PGConfig `group:"PostgreSQL"`
}

func addWorkerCmd(parser *flags.Parser) error {
	cmd, err := parser.AddCommand("worker", "Run a single benchmark worker (internal)", `
Internal command: runs one worker process for a multiproc benchmark and
emits its result as JSON on stdout. Spawned by the multiproc command.
`, &cmdWorker{})
	if err != nil {
		return err
	}
	cmd.Hidden = true
	return nil
}

func (cmd *cmdWorker) Execute([]string) error {
	initLog(cmd.LogLevel)

	w, err := workload.MultiprocWorker(workload.Engine(cmd.Engine), cmd.Role, workload.Config{
		SQLitePath:   cmd.SQLitePath,
		SQLiteDriver: cmd.SQLiteDriver,
		Items:        cmd.Items,
		PG:           cmd.PG,
	})
	if err != nil {
		return err
	}

	results := bench.Run(context.Background(), cmd.RunID, cmd.Duration, []bench.Worker{w})

	data, err := results[0].Encode()
	if err != nil {
		return fmt.Errorf("encode result, %w", err)
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n", data)
	return err
}
