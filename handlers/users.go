package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/authsession/internal/apperror"
	"github.com/tech-arch1tect/authsession/middleware/jwt"
	"github.com/tech-arch1tect/authsession/services/users"
)

type MeResponse struct {
	User *users.User `json:"user"`
}

// Me returns the user resolved by the auth guard.
func Me(c echo.Context) error {
	user := jwt.GetUser(c)
	if user == nil {
		return apperror.Unauthenticated("Authentication invalid", nil)
	}
	return c.JSON(http.StatusOK, MeResponse{User: user})
}

func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
