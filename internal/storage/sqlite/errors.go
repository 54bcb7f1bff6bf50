package sqlite

import (
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"wealthwatch/internal/core"
)

// mapError translates driver failures into the domain error kinds. Extended
// result codes are folded to their primary code first.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return &core.ConcurrencyError{Op: op, Err: err}
		case sqlite3.SQLITE_CONSTRAINT:
			return &core.IntegrityError{Op: op, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
