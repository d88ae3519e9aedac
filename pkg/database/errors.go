package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/medflow/stockledger/pkg/errors"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeNumericOutOfRange    = "22003"
)

// IsRetryable reports whether err carries a Postgres serialization failure
// or deadlock, after which the whole transaction may be run again.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or has no domain meaning.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict("a record with these values already exists")

	// Foreign key violation (23503)
	case "23503":
		return mapForeignKey(pqErr)

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.InvalidField(col, "must not be empty")

	// Numeric value out of range (22003), e.g. a quantity past the INTEGER column
	case codeNumericOutOfRange:
		return errors.InvalidField("quantity", "out of range")

	// Invalid text representation (22P02), e.g. a malformed UUID
	case "22P02":
		return errors.BadRequest("malformed identifier")

	default:
		return nil
	}
}

// mapCheckConstraint maps CHECK constraint names to field errors.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.HasSuffix(constraint, "quantity_non_negative"):
		return errors.InvalidField("quantity", "must not be negative")
	case strings.HasSuffix(constraint, "quantity_positive"):
		return errors.InvalidField("quantity", "must be greater than zero")
	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapForeignKey names the missing parent of a foreign key violation.
func mapForeignKey(pqErr *pq.Error) *errors.AppError {
	switch {
	case strings.Contains(pqErr.Constraint, "item_id"):
		return errors.NotFound("item")
	case strings.Contains(pqErr.Constraint, "batch_id"):
		return errors.NotFound("batch")
	case strings.Contains(pqErr.Constraint, "transaction_id"):
		return errors.NotFound("transaction")
	default:
		return errors.BadRequest("referenced record does not exist")
	}
}
