package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// PostgreSQL error codes the service reacts to.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
	pqCheckViolation       = "23514"
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqNotNullViolation     = "23502"
)

// IsRetryable reports whether err is a transient concurrency failure after which
// the whole transaction can be replayed: serialization failures and deadlocks on
// PostgreSQL, busy or locked databases on SQLite.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if stderrors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	return false
}

// IsCheckViolation reports whether err is a CHECK constraint failure.
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == pqCheckViolation
	}

	var liteErr sqlite3.Error
	if stderrors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	return false
}

// IsForeignKeyViolation reports whether err is a foreign key failure.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == pqForeignKeyViolation
	}

	var liteErr sqlite3.Error
	if stderrors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case pqCheckViolation:
		return mapCheckConstraint(pqErr.Constraint)

	case pqUniqueViolation:
		return errors.Conflict("a record with these values already exists")

	case pqForeignKeyViolation:
		if strings.Contains(pqErr.Constraint, "medicine") {
			return errors.NotFound("medicine")
		}
		return errors.BadRequest("referenced record does not exist")

	case pqNotNullViolation:
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps the lot and ledger CHECK constraints to field errors.
func mapCheckConstraint(constraint string) *errors.AppError {
	switch {
	case strings.Contains(constraint, "qty_in"):
		return errors.Validation(map[string]string{"qty_in": "must not be negative"})
	case strings.Contains(constraint, "qty_remaining"):
		return errors.Conflict("lot quantity would become inconsistent")
	case strings.Contains(constraint, "unit_cost"):
		return errors.Validation(map[string]string{"unit_cost": "must not be negative"})
	case strings.Contains(constraint, "qty_positive"):
		return errors.Validation(map[string]string{"qty": "must be positive"})
	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}
