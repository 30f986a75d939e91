package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/authsession/config"
)

// RefreshCookie writes and clears the cookie that carries the refresh token.
// The token is never placed in a response body.
type RefreshCookie struct {
	Name   string
	Path   string
	Secure bool
	MaxAge time.Duration
}

func NewRefreshCookie(cfg *config.Config) RefreshCookie {
	return RefreshCookie{
		Name:   cfg.Cookie.Name,
		Path:   cfg.Cookie.Path,
		Secure: cfg.App.IsProduction(),
		MaxAge: cfg.JWT.RefreshExpiry,
	}
}

func (rc RefreshCookie) Read(c echo.Context) string {
	cookie, err := c.Cookie(rc.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (rc RefreshCookie) Set(c echo.Context, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     rc.Name,
		Value:    token,
		Path:     rc.Path,
		Expires:  expiresAt,
		MaxAge:   int(rc.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   rc.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (rc RefreshCookie) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     rc.Name,
		Value:    "",
		Path:     rc.Path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   rc.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
