// Package apperror defines the error taxonomy surfaced to HTTP callers as
// {msg, status}.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Kind string

const (
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindMissingToken       Kind = "missing_token"
	KindInvalidToken       Kind = "invalid_token"
	KindUserNotFound       Kind = "user_not_found"
	KindUnauthenticated    Kind = "unauthenticated"
	KindInternal           Kind = "internal"
)

// Sentinels for errors.Is; every *Error of a kind unwraps to its sentinel
// unless it carries a more specific cause.
var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInternal           = errors.New("internal error")
)

const InternalMessage = "Something went wrong, please try again later"

type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(kind Kind) error {
	switch kind {
	case KindValidation:
		return ErrValidation
	case KindConflict:
		return ErrConflict
	case KindInvalidCredentials:
		return ErrInvalidCredentials
	case KindMissingToken:
		return ErrMissingToken
	case KindInvalidToken:
		return ErrInvalidToken
	case KindUserNotFound:
		return ErrUserNotFound
	case KindUnauthenticated:
		return ErrUnauthenticated
	default:
		return ErrInternal
	}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Status: http.StatusBadRequest}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message, Status: http.StatusBadRequest}
}

// InvalidCredentials carries one message for unknown identifiers and wrong
// passwords alike.
func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials", Status: http.StatusBadRequest}
}

func MissingToken(message string) *Error {
	return &Error{Kind: KindMissingToken, Message: message, Status: http.StatusUnauthorized}
}

func InvalidToken(message string, cause error) *Error {
	return &Error{Kind: KindInvalidToken, Message: message, Status: http.StatusForbidden, Err: cause}
}

func UserNotFound() *Error {
	return &Error{Kind: KindUserNotFound, Message: "User not found", Status: http.StatusNotFound}
}

func Unauthenticated(message string, cause error) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message, Status: http.StatusUnauthorized, Err: cause}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: InternalMessage, Status: http.StatusInternalServerError, Err: err}
}

// Status returns the HTTP status code for err.
func Status(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return http.StatusInternalServerError
}

// Message returns the caller-facing message for err. Internal causes are
// never exposed.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if msg, ok := httpErr.Message.(string); ok {
			return msg
		}
		return http.StatusText(httpErr.Code)
	}

	return InternalMessage
}
