// Package apperr defines the error taxonomy shared by every feature package.
// Handlers translate an *Error into an HTTP status by its Kind; anything
// else is reported as an unexpected failure.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindAuthentication     Kind = "authentication"
	KindAuthorization      Kind = "authorization"
	KindStateConflict      Kind = "state_conflict"
	KindExpiry             Kind = "expiry"
	KindUnsupportedPayload Kind = "unsupported_payload"
)

// FieldError names one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified, caller-safe error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

// Is matches kind sentinels (errors with no code) by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == "" && t.Kind == e.Kind
}

// Kind sentinels.
var (
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrAuthentication     = &Error{Kind: KindAuthentication, Message: "authentication required"}
	ErrAuthorization      = &Error{Kind: KindAuthorization, Message: "forbidden"}
	ErrStateConflict      = &Error{Kind: KindStateConflict, Message: "state conflict"}
	ErrExpiry             = &Error{Kind: KindExpiry, Message: "expired"}
	ErrUnsupportedPayload = &Error{Kind: KindUnsupportedPayload, Message: "unsupported payload"}
)

// New builds a domain sentinel of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation builds a validation error carrying field details.
func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Code: "validation_error", Message: "Validation failed", Fields: fields}
}

// Field is shorthand for a single-field validation error.
func Field(field, message string) *Error {
	return Validation(FieldError{Field: field, Message: message})
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
