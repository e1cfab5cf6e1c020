package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the callers care about.
const (
	CodeInsufficientPrivilege = "42501"
	CodeUndefinedTable        = "42P01"
	CodeUniqueViolation       = "23505"
	CodeMultipleRows          = "PGRST116"
	// CodeInvalidParameter marks arguments rejected before any query ran.
	CodeInvalidParameter      = "22023"
)

// QueryError is the only error shape that leaves the row store. Message is what
// the backend reported; Code is kept for logging and metrics.
type QueryError struct {
	Message string
	Code    string
}

func (e *QueryError) Error() string {
	return e.Message
}

// AsQueryError converts any error into a *QueryError, keeping Postgres codes.
func AsQueryError(err error) *QueryError {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &QueryError{Message: pgErr.Message, Code: pgErr.Code}
	}
	return &QueryError{Message: err.Error()}
}
