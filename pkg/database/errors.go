package database

import (
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

// IsNoRows reports whether err is (or wraps) sql.ErrNoRows
func IsNoRows(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
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
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
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

// MapError returns the mapped AppError for PostgreSQL constraint errors and err otherwise
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "email_format"):
		return errors.Validation(map[string]string{
			"email": "must be a valid email address",
		})

	case strings.Contains(constraint, "price_nonnegative"):
		return errors.Validation(map[string]string{
			"price_cents": "must not be negative",
		})

	case strings.Contains(constraint, "slot_range"):
		return errors.Validation(map[string]string{
			"ends_at": "must be after starts_at",
		})

	case strings.Contains(constraint, "quantity_range"):
		return errors.Validation(map[string]string{
			"quantity": "must be between 1 and 99",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "unknown status",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "users_email"):
		return "an account with this email already exists"
	case strings.Contains(constraint, "merchants_slug"):
		return "a merchant with this slug already exists"
	case strings.Contains(constraint, "merchant_members"):
		return "this user is already a member of the merchant"
	case strings.Contains(constraint, "ticket_number"):
		return "ticket number already taken"
	case strings.Contains(constraint, "open_session"):
		return "you already hold a ticket in this queue"
	case strings.Contains(constraint, "label"):
		return "a record with this label already exists"
	default:
		return "a record with these values already exists"
	}
}
