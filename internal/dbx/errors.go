package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE raised by a UNIQUE constraint.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err comes from a violated UNIQUE
// constraint. The second result is the constraint name, when known.
func IsUniqueViolation(err error) (bool, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return true, pgErr.ConstraintName
	}
	return false, ""
}
