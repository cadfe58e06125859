package datasource

import (
	"errors"
	"fmt"
)

// Error wraps a failure reported by the database driver or the registry.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Connection is the name of the connection involved.
	Connection string

	// SQL is the statement that failed, when there is one.
	SQL string

	// Err is the underlying driver error.
	Err error
}

// ErrorCode categorizes datasource errors.
type ErrorCode string

const (
	// ErrCodeConnection indicates the connection could not be opened.
	ErrCodeConnection ErrorCode = "CONNECTION"

	// ErrCodeExecution indicates a statement failed.
	ErrCodeExecution ErrorCode = "EXECUTION"

	// ErrCodeTransaction indicates an invalid transaction transition.
	ErrCodeTransaction ErrorCode = "TRANSACTION"

	// ErrCodeMissingConnection indicates an unknown connection name.
	ErrCodeMissingConnection ErrorCode = "MISSING_CONNECTION"

	// ErrCodeSchema indicates a table could not be described.
	ErrCodeSchema ErrorCode = "SCHEMA"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("datasource %s: %s", e.Connection, e.Code)
	if e.SQL != "" {
		msg += fmt.Sprintf(" (sql=%q)", e.SQL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the driver error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsDatasourceError returns true if err is or wraps a datasource *Error.
func IsDatasourceError(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// IsMissingConnection returns true if err reports an unknown connection name.
func IsMissingConnection(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == ErrCodeMissingConnection
	}
	return false
}
