package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error. The transport layer maps a Kind to a
// status code in exactly one place.
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindRateLimited  Kind = "rate_limited"
	KindInternal     Kind = "internal_error"
)

// HTTPStatus returns the HTTP status code for the kind.
// Conflicts are reported as 400 to keep the registration contract of the API.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

const internalPublicMsg = "internal server error"

// Kinder is implemented by every error type in this package.
type Kinder interface {
	Kind() Kind
}

// KindOf reports the kind of the first classified error in err's chain.
// Unclassified errors are treated as internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinder
	if stderrors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// PublicMessage returns the message that is safe to show to a client.
// Internal failures never expose their cause.
func PublicMessage(err error) string {
	var k Kinder
	if !stderrors.As(err, &k) || k.Kind() == KindInternal {
		return internalPublicMsg
	}
	return k.(error).Error()
}

// ValidationError represents a validation failure with field-level details
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Kind() Kind { return KindValidation }

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Kind() Kind { return KindNotFound }

// AlreadyExistsError represents a uniqueness conflict, e.g. a duplicate email.
type AlreadyExistsError struct {
	Resource string
	Message  string
}

// NewAlreadyExistsError creates a new already exists error
func NewAlreadyExistsError(resource, message string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface
func (e *AlreadyExistsError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s already exists", e.Resource)
}

func (e *AlreadyExistsError) Kind() Kind { return KindConflict }

// UnauthorizedError covers missing, invalid or expired credentials.
type UnauthorizedError struct {
	Message string
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

func (e *UnauthorizedError) Error() string { return e.Message }

func (e *UnauthorizedError) Kind() Kind { return KindUnauthorized }

// ForbiddenError is returned when an authenticated caller lacks a required role.
type ForbiddenError struct {
	Message string
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func (e *ForbiddenError) Error() string { return e.Message }

func (e *ForbiddenError) Kind() Kind { return KindForbidden }

// InternalError represents an internal server error with context
type InternalError struct {
	Message string
	Err     error
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *InternalError {
	return &InternalError{
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *InternalError) Unwrap() error {
	return e.Err
}

func (e *InternalError) Kind() Kind { return KindInternal }
