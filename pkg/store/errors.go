package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors the API layer maps to HTTP statuses. Wrap them with
// context via fmt.Errorf("%w: ...", ErrNotFound) and test with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// ValidationError carries a client-correctable input problem.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError formats a validation failure.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// DatabaseError wraps a storage failure. The API layer scrubs it to a
// generic 500; the original error stays available for logging.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *DatabaseError) Unwrap() error { return e.Err }

func dbErr(op string, err error) error {
	return &DatabaseError{Op: op, Err: err}
}

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
