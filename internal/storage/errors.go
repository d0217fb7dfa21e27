package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budgetbook/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// mapError turns driver failures into domain errors. Errors that already
// carry a kind pass through unchanged.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *core.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return core.WrapError(core.KindNotFound, op, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, sql.ErrTxDone):
		return core.WrapError(core.KindStorageUnavailable, op, err)
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR,
			sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_FULL, sqlite3.SQLITE_READONLY:
			return core.WrapError(core.KindStorageUnavailable, op, err)
		case sqlite3.SQLITE_CONSTRAINT:
			switch code {
			case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
				return core.WrapError(core.KindConflict, op, err)
			case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
				return core.WrapError(core.KindNotFound, op, err)
			default:
				return core.WrapError(core.KindInvalidInput, op, err)
			}
		}
	}
	return core.WrapError(core.KindInternal, op, fmt.Errorf("storage: %w", err))
}
