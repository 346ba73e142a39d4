package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/quadrant/internal/backend"
)

// wrapErr classifies a database error as a *backend.Error.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	e := &backend.Error{Op: op, Code: backend.CodeInternal, Err: err}

	var pqErr *pq.Error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		e.Code = backend.CodeNotFound
		e.Message = "no matching row"
	case errors.As(err, &pqErr):
		e.Message = pqErr.Message
		switch string(pqErr.Code) {
		case "23503":
			e.Code = backend.CodeForeignKey
		case "23505":
			e.Code = backend.CodeConflict
		case "23514", "23502", "22P02":
			e.Code = backend.CodeInvalid
		case "42501":
			e.Code = backend.CodeUnauthorized
		case "57P01", "57P03", "53300":
			e.Code = backend.CodeUnavailable
		}
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, sql.ErrConnDone):
		e.Code = backend.CodeUnavailable
	}
	return e
}
