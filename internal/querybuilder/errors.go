package querybuilder

import (
	"errors"
	"fmt"
)

// Error reports malformed builder input. It is a programmer error: callers
// are expected to let it abort the surrounding operation.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Field is the condition key or column involved, when there is one.
	Field string
}

// ErrorCode categorizes builder errors.
type ErrorCode string

const (
	// ErrCodeNoStatement indicates Write was called before any statement call.
	ErrCodeNoStatement ErrorCode = "NO_STATEMENT"

	// ErrCodeEmptyData indicates an INSERT or UPDATE without data.
	ErrCodeEmptyData ErrorCode = "EMPTY_DATA"

	// ErrCodeMissingConditions indicates a DELETE without conditions.
	ErrCodeMissingConditions ErrorCode = "MISSING_CONDITIONS"

	// ErrCodeInvalidOperator indicates an unrecognized comparison operator.
	ErrCodeInvalidOperator ErrorCode = "INVALID_OPERATOR"

	// ErrCodeInvalidConditionValue indicates a value of the wrong shape for
	// its operator (null with ">", a 3-element BETWEEN, an empty IN list...).
	ErrCodeInvalidConditionValue ErrorCode = "INVALID_CONDITION_VALUE"

	// ErrCodeInvalidJoin indicates a join without a table or conditions.
	ErrCodeInvalidJoin ErrorCode = "INVALID_JOIN"

	// ErrCodePageOffsetConflict indicates both Page and Offset were set.
	ErrCodePageOffsetConflict ErrorCode = "PAGE_OFFSET_CONFLICT"

	// ErrCodeLimitRequired indicates Page or Offset was set without Limit.
	ErrCodeLimitRequired ErrorCode = "LIMIT_REQUIRED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("query builder: %s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("query builder: %s: %s", e.Code, e.Message)
}

// IsQueryBuilderError returns true if err is or wraps a builder *Error.
func IsQueryBuilderError(err error) bool {
	var qe *Error
	return errors.As(err, &qe)
}

// HasCode returns true if err is or wraps a builder *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

func newError(code ErrorCode, field, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
	}
}
