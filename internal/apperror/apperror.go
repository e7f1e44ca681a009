// Package apperror defines the domain errors shared by the service and
// handler layers. Services return these; handlers translate them to HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// Authentication failures. All three surface as 401 and must not tell
	// the caller anything beyond their fixed message.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Messages returned to clients for the authentication failures.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgLoginFirst         = "You must login first."
	MsgNotAuthorized      = "You are not authorized to access this resource."
	MsgInvalidToken       = "Invalid token"
	MsgFileNotFound       = "File not found."
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// FileNotFound reports a missing stored file with a fixed message. Callers
// log the key themselves.
func FileNotFound() *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: MsgFileNotFound,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InvalidCredentials is returned when a login code matches no account.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: MsgInvalidCredentials,
	}
}

// Unauthenticated is returned when a protected request carries no token.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: MsgLoginFirst,
	}
}

// Unauthorized is returned when a presented token resolves to no account.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: MsgNotAuthorized,
	}
}

// IsAuthFailure reports whether err is one of the 401 class errors.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrUnauthorized)
}
