package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Transient reports whether err is a transient PostgreSQL failure worth
// retrying: a serialization conflict, a deadlock, or a connection-level
// error. Constraint violations and other data errors are terminal.
//
// Not installed by default; pass WithRetryPredicate(Transient) to opt in.
func Transient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	}
	return pgerrcode.IsConnectionException(pgErr.Code)
}
