package bench

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestIsLockError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mattn busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"mattn locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"mattn constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"pg lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"pg serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"message fallback", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"table message fallback", errors.New("database table is locked"), true},
		{"unrelated", errors.New("no such table: metadata_items"), false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, IsLockError(c.err))
		})
	}
}

func TestIsLockErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("insert batch, %w", sqlite3.Error{Code: sqlite3.ErrBusy})
	assert.True(t, IsLockError(err))

	err = fmt.Errorf("update item, %w", &pgconn.PgError{Code: "40P01"})
	assert.True(t, IsLockError(err))
}
