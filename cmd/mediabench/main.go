// mediabench compares SQLite and PostgreSQL under the concurrent load of a
// media server deployment: library scans, metadata updates from companion
// tools, and playback progress tracking, all hitting the database at once.
package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"golang.org/x/exp/slog"
)

func main() {
	parser := flags.NewParser(nil, flags.Default)
	parser.LongDescription = `mediabench measures how SQLite and PostgreSQL behave when a media server's
library scanner, metadata tools, and playback streams all write at once.

SQLite allows a single writer across all connections; competing writers fail
with "database is locked". PostgreSQL's MVCC lets every worker write
simultaneously. Each command runs the same workload against both engines and
prints a comparative report.

The PostgreSQL side is configured with --pg-* flags or the PLEX_PG_*
environment variables.`

	must(addStressCmd(parser))
	must(addMultiprocCmd(parser))
	must(addWorkerCmd(parser))

	if _, err := parser.Parse(); err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func must(err error) {
	if err != nil {
		slog.Error("failed to initialize commands", "err", err)
		os.Exit(1)
	}
}

func initLog(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.HandlerOptions{
		Level: l,
	}.NewTextHandler(os.Stderr)))
}
