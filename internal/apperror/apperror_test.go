package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      *Error
		status   int
		sentinel error
	}{
		{"validation", Validation("Username, email, and password are required"), http.StatusBadRequest, ErrValidation},
		{"conflict", Conflict("Email or username already in use"), http.StatusBadRequest, ErrConflict},
		{"invalid credentials", InvalidCredentials(), http.StatusBadRequest, ErrInvalidCredentials},
		{"missing token", MissingToken("Refresh token not found"), http.StatusUnauthorized, ErrMissingToken},
		{"invalid token", InvalidToken("Invalid refresh token", cause), http.StatusForbidden, ErrInvalidToken},
		{"user not found", UserNotFound(), http.StatusNotFound, ErrUserNotFound},
		{"unauthenticated", Unauthenticated("Authentication invalid", nil), http.StatusUnauthorized, ErrUnauthenticated},
		{"internal", Internal(cause), http.StatusInternalServerError, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.ErrorIs(t, tt.err, tt.sentinel)

			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.Equal(t, tt.status, Status(wrapped))
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("signature mismatch")
	err := InvalidToken("Invalid or expired refresh token", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestStatusAndMessage(t *testing.T) {
	t.Run("app error", func(t *testing.T) {
		err := Conflict("Email or username already in use")

		assert.Equal(t, "Email or username already in use", Message(err))
	})

	t.Run("echo error", func(t *testing.T) {
		err := echo.NewHTTPError(http.StatusNotFound, "Route does not exist")

		assert.Equal(t, http.StatusNotFound, Status(err))
		assert.Equal(t, "Route does not exist", Message(err))
	})

	t.Run("echo error without string message", func(t *testing.T) {
		err := echo.NewHTTPError(http.StatusMethodNotAllowed, map[string]string{"a": "b"})

		assert.Equal(t, http.StatusText(http.StatusMethodNotAllowed), Message(err))
	})

	t.Run("unknown error hides details", func(t *testing.T) {
		err := errors.New("db exploded")

		assert.Equal(t, http.StatusInternalServerError, Status(err))
		assert.Equal(t, InternalMessage, Message(err))
	})

	t.Run("internal hides cause", func(t *testing.T) {
		assert.Equal(t, InternalMessage, Message(Internal(errors.New("secret detail"))))
	})
}
