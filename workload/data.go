// Package workload defines the emulated media-server applications that
// generate load during a benchmark run: the library scanner, the metadata
// updaters that compete with it, and playback streams.
package workload

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-faker/faker/v4"

	"mediabench/db"
)

// scanSummary is the filler text the scanner writes for every item, sized
// like a real plot summary.
var scanSummary = faker.Paragraph()

func randGUID() string {
	return fmt.Sprintf("com.plexapp.agents.imdb://%d", 1000000+rand.Intn(9000000))
}

func randScanGUID() string {
	return fmt.Sprintf("plex://%d", 1+rand.Intn(999999))
}

func randTitle() string {
	return fmt.Sprintf("Movie %d", 1+rand.Intn(99999))
}

func randDuration() int64 {
	return int64(3600000 + rand.Intn(7200000))
}

// randViewOffset is a playback position within a two hour window, in ms.
func randViewOffset() int64 {
	return int64(rand.Intn(7200001))
}

func randItemID(items int) int64 {
	if items < 1 {
		items = 1
	}
	return int64(1 + rand.Intn(items))
}

func epoch() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// scanInsert returns the insert statement for the scan table plus a
// generator of fresh argument rows. The two scan tables carry different
// column sets. Placeholders are ?-style; rebind for PostgreSQL.
func scanInsert(table, qualified string) (string, func() []any) {
	switch table {
	case db.TableScan:
		return fmt.Sprintf(
				`INSERT INTO %s (guid, title, added_at) VALUES (?, ?, ?)`, qualified),
			func() []any {
				return []any{randScanGUID(), randTitle(), epoch()}
			}
	default:
		return fmt.Sprintf(
				`INSERT INTO %s (guid, title, summary, duration, added_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`, qualified),
			func() []any {
				now := epoch()
				return []any{randGUID(), randTitle(), scanSummary, randDuration(), now, now}
			}
	}
}

// progressInsert is the watch-progress statement for the progress table.
// The column naming differs between the two scratch tables.
func progressInsert(table, qualified string) (string, func() []any) {
	column := "metadata_id"
	if table == db.TableProgress {
		column = "item_id"
	}
	return fmt.Sprintf(
			`INSERT INTO %s (%s, view_offset, updated_at) VALUES (?, ?, ?)`, qualified, column),
		func() []any {
			return []any{1 + rand.Int63n(1000), randViewOffset(), epoch()}
		}
}

const updateItemSQL = `UPDATE %s SET updated_at = ? WHERE id = ?`

const selectItemSQL = `SELECT id, title, rating FROM %s WHERE id = ?`

const selectScanSQL = `SELECT id, title, duration FROM %s ORDER BY RANDOM() LIMIT 1`

// pause sleeps for d or until ctx is done, reporting whether the caller
// should keep looping.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
