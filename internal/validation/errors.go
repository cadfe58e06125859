package validation

import (
	"errors"
	"fmt"
)

// Error reports a misconfigured validator, such as an unknown rule name.
type Error struct {
	Code  ErrorCode
	Rule  string
	Field string
}

// ErrorCode categorizes validator errors.
type ErrorCode string

const (
	// ErrCodeUnknownRule indicates a rule name that is not registered.
	ErrCodeUnknownRule ErrorCode = "UNKNOWN_RULE"

	// ErrCodeBadArgs indicates a rule received arguments it cannot use.
	ErrCodeBadArgs ErrorCode = "BAD_ARGS"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("validator: %s: rule %q on field %q", e.Code, e.Rule, e.Field)
}

// IsValidatorError returns true if err is or wraps a validator *Error.
func IsValidatorError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}
