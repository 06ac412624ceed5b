// Package apperr holds the error types returned by the data layer.
// Every type here is distinguishable with errors.As; sentinels with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrAlreadyInitialized = errors.New("database already initialized")
)

// InitializationError means the schema or connection could not be set up.
// Nothing else may run after it.
type InitializationError struct {
	Stage string
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed at %s: %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// NotReadyError is returned for any statement issued before Initialize completed.
type NotReadyError struct {
	Statement string
}

func (e *NotReadyError) Error() string {
	if e.Statement == "" {
		return "database not ready"
	}
	return fmt.Sprintf("database not ready: %q", e.Statement)
}

type InsufficientStockError struct {
	StockID   uint
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock remaining for stock %d: requested %d, available %d", e.StockID, e.Requested, e.Available)
}

// ConstraintViolationError wraps a foreign-key or uniqueness failure reported by SQLite.
type ConstraintViolationError struct {
	Op  string
	Err error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("%s: constraint violation: %v", e.Op, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error { return e.Err }

// ForeignKey reports whether the underlying failure is a foreign-key violation.
func (e *ConstraintViolationError) ForeignKey() bool { return IsForeignKeyViolation(e.Err) }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: field '%s' %s", e.Field, e.Reason)
}

// ImportValidationError is returned when a backup document fails the structural check.
// The live database has not been touched when this is returned.
type ImportValidationError struct {
	Missing []string
	Reason  string
}

func (e *ImportValidationError) Error() string {
	if len(e.Missing) > 0 {
		return "invalid backup document: missing tables " + strings.Join(e.Missing, ", ")
	}
	return "invalid backup document: " + e.Reason
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Constraint wraps err as a ConstraintViolationError when it is one, otherwise returns it unchanged.
func Constraint(op string, err error) error {
	var cv *ConstraintViolationError
	if errors.As(err, &cv) {
		return err
	}
	if IsForeignKeyViolation(err) || IsUniqueViolation(err) {
		return &ConstraintViolationError{Op: op, Err: err}
	}
	return err
}

// NotFound maps gorm's record-not-found onto ErrNotFound.
func NotFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
