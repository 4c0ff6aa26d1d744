package bench

import (
	"errors"
	"strings"

	"github.com/jackc/pgconn"
	sqlite3 "github.com/mattn/go-sqlite3"
	sqlite "modernc.org/sqlite"
)

// modernc.org/sqlite result codes. The driver reports bare ints rather than
// named constants.
const (
	moderncBusy   = 5
	moderncLocked = 6
)

// PostgreSQL SQLSTATE codes that indicate lock contention rather than a
// broken statement.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// IsLockError reports whether err is lock contention: SQLITE_BUSY or
// SQLITE_LOCKED from either sqlite driver, or a serialization/deadlock/lock
// SQLSTATE from PostgreSQL. Anything else (bad SQL, closed connection,
// context expiry) is an ordinary failure.
func IsLockError(err error) bool {
	if err == nil {
		return false
	}

	var me sqlite3.Error
	if errors.As(err, &me) {
		return me.Code == sqlite3.ErrBusy || me.Code == sqlite3.ErrLocked
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == moderncBusy || se.Code() == moderncLocked
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}

	// Fallback for drivers that only surface the sqlite message text.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
