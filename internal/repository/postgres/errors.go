package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories map to domain errors
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidTextRep      = "22P02" // malformed UUID literal
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool { return pgCode(err) == codeUniqueViolation }

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool { return pgCode(err) == codeForeignKeyViolation }

// IsPgCheckViolation reports a CHECK constraint failure, e.g. an unknown status
func IsPgCheckViolation(err error) bool { return pgCode(err) == codeCheckViolation }

// IsPgInvalidInput reports a value Postgres could not parse, such as an ID
// that is not a UUID. Lookups treat it as not found.
func IsPgInvalidInput(err error) bool { return pgCode(err) == codeInvalidTextRep }
