package model

import (
	"errors"
	"fmt"
)

// Error reports a model-level failure.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Model is the alias of the model involved.
	Model string

	// Association is the association alias involved, when there is one.
	Association string

	// ID is the primary key involved, when there is one.
	ID any

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes model errors.
type ErrorCode string

const (
	// ErrCodeMissingModel indicates an association target that is not
	// registered.
	ErrCodeMissingModel ErrorCode = "MISSING_MODEL"

	// ErrCodeNotFound indicates a get-by-id miss.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidAssociation indicates a malformed association
	// declaration.
	ErrCodeInvalidAssociation ErrorCode = "INVALID_ASSOCIATION"

	// ErrCodeInvalidData indicates data that cannot be written, such as a
	// HABTM row with neither a primary key nor a display field.
	ErrCodeInvalidData ErrorCode = "INVALID_DATA"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Model != "" {
		msg += fmt.Sprintf(" (model=%s", e.Model)
		if e.Association != "" {
			msg += fmt.Sprintf(", association=%s", e.Association)
		}
		if e.ID != nil {
			msg += fmt.Sprintf(", id=%v", e.ID)
		}
		msg += ")"
	}
	return msg
}

// IsMissingModelError returns true if err reports an unregistered model.
// Uses errors.As to handle wrapped errors.
func IsMissingModelError(err error) bool {
	return hasCode(err, ErrCodeMissingModel)
}

// IsNotFoundError returns true if err reports a get-by-id miss.
func IsNotFoundError(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsInvalidDataError returns true if err reports unwritable data.
func IsInvalidDataError(err error) bool {
	return hasCode(err, ErrCodeInvalidData)
}

func hasCode(err error, code ErrorCode) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// NewMissingModelError creates an Error for an unregistered model name.
func NewMissingModelError(name string) *Error {
	return &Error{
		Code:    ErrCodeMissingModel,
		Message: fmt.Sprintf("model %q is not registered", name),
	}
}

// NewNotFoundError creates an Error for a missing record.
func NewNotFoundError(model string, id any) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Model:   model,
		ID:      id,
		Message: "record not found",
	}
}
