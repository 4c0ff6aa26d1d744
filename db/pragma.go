// Package db opens and prepares the SQLite and PostgreSQL databases the
// benchmark workers hammer on.
package db

import (
	"fmt"
	"net/url"
)

// Driver names as registered by the two sqlite drivers.
const (
	// DriverModernc is modernc.org/sqlite, pure Go.
	DriverModernc = "sqlite"
	// DriverMattn is github.com/mattn/go-sqlite3, cgo.
	DriverMattn = "sqlite3"
)

// Pragma carries sqlite connection settings. The zero value means a zero
// busy timeout, so a writer that hits a lock fails immediately instead of
// queueing, which is how the emulated applications are configured. The
// timeout is always written into the DSN: left unset, the mattn driver
// would substitute its own 5000ms default and mask the contention this
// tool exists to measure.
//
// https://www.sqlite.org/pragma.html
type Pragma struct {
	BusyTimeout       int
	Cache             string
	CacheSize         int
	FullSync          bool
	JournalMode       string
	MmapSize          int
	Synchronous       string
	TempStore         string
	WALAutoCheckpoint int
}

// Encode renders the pragma as DSN query parameters for the given driver.
// The two drivers take different parameter spellings.
func (p Pragma) Encode(driver string) string {
	switch driver {
	case DriverMattn:
		return p.encodeMattn()
	case DriverModernc:
		return p.encodeModernc()
	}
	return ""
}

func (p Pragma) encodeMattn() string {
	val := url.Values{}

	if v := p.JournalMode; v != "" {
		val.Set("_journal_mode", v)
	}
	if v := p.Synchronous; v != "" {
		val.Set("_synchronous", v)
	}
	if v := p.CacheSize; v != 0 {
		val.Set("_cache_size", fmt.Sprintf("%d", v))
	}
	val.Set("_busy_timeout", fmt.Sprintf("%d", p.BusyTimeout))
	if v := p.FullSync; v {
		val.Set("_fullsync", "1")
	}
	if v := p.TempStore; v != "" {
		val.Set("_temp_store", v)
	}
	if v := p.MmapSize; v != 0 {
		val.Set("_mmap_size", fmt.Sprintf("%d", v))
	}
	if v := p.Cache; v != "" {
		val.Set("cache", v)
	}
	if v := p.WALAutoCheckpoint; v != 0 {
		val.Set("_wal_autocheckpoint", fmt.Sprintf("%d", v))
	}

	result, _ := url.QueryUnescape(val.Encode())
	return result
}

func (p Pragma) encodeModernc() string {
	val := url.Values{}

	if v := p.JournalMode; v != "" {
		val.Add("_pragma", fmt.Sprintf("journal_mode(%s)", v))
	}
	if v := p.Synchronous; v != "" {
		val.Add("_pragma", fmt.Sprintf("synchronous(%s)", v))
	}
	if v := p.CacheSize; v != 0 {
		val.Add("_pragma", fmt.Sprintf("cache_size(%d)", v))
	}
	val.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", p.BusyTimeout))
	if v := p.FullSync; v {
		val.Add("_pragma", "fullsync(1)")
	}
	if v := p.TempStore; v != "" {
		val.Add("_pragma", fmt.Sprintf("temp_store(%s)", v))
	}
	if v := p.MmapSize; v != 0 {
		val.Add("_pragma", fmt.Sprintf("mmap_size(%d)", v))
	}
	if v := p.Cache; v != "" {
		val.Set("cache", v)
	}
	if v := p.WALAutoCheckpoint; v != 0 {
		val.Add("_pragma", fmt.Sprintf("wal_autocheckpoint(%d)", v))
	}

	result, _ := url.QueryUnescape(val.Encode())
	return result
}
