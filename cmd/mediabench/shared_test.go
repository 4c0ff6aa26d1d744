package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabench/db"
)

func TestWorkloadConfigTempDatabase(t *testing.T) {
	cfg := sharedConfig{Streams: 4, Items: 100, SQLiteDriver: db.DriverModernc}

	wcfg, cleanup, err := cfg.workloadConfig()
	require.NoError(t, err)
	defer cleanup()

	assert.NotEmpty(t, wcfg.SQLitePath)
	assert.Equal(t, 4, wcfg.Streams)

	// cleanup removes the temp directory.
	cleanup()
	_, err = os.Stat(wcfg.SQLitePath)
	assert.True(t, os.IsNotExist(err))
}

func TestWorkloadConfigExplicitPath(t *testing.T) {
	cfg := sharedConfig{SQLitePath: "/srv/plex/library.db", SQLiteDriver: db.DriverMattn}

	wcfg, cleanup, err := cfg.workloadConfig()
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "/srv/plex/library.db", wcfg.SQLitePath)

	// cleanup must not touch a user-supplied database.
	cleanup()
	assert.Equal(t, "/srv/plex/library.db", wcfg.SQLitePath)
}

func TestLastLine(t *testing.T) {
	out := []byte("log noise\n{\"worker\":\"pmm\"}\n")
	assert.Equal(t, `{"worker":"pmm"}`, string(lastLine(out)))

	assert.Equal(t, "single", string(lastLine([]byte("single"))))
}

func TestPGEnv(t *testing.T) {
	env := pgEnv(db.PGConfig{
		Host:     "pg.local",
		Port:     5433,
		Database: "plex",
		User:     "plex",
		Password: "secret",
		Schema:   "plex",
	})

	assert.Contains(t, env, "PLEX_PG_HOST=pg.local")
	assert.Contains(t, env, "PLEX_PG_PORT=5433")
	assert.Contains(t, env, "PLEX_PG_SCHEMA=plex")
	assert.Len(t, env, 6)
}
