package openapi

import (
	"net/http"

	"github.com/tech-arch1tect/authsession/config"
	"github.com/tech-arch1tect/authsession/handlers"
	"github.com/tech-arch1tect/authsession/services/session"
	"github.com/tech-arch1tect/authsession/services/users"
)

const (
	bearerScheme  = "accessToken"
	refreshScheme = "refreshCookie"
)

// Describe documents the routes registered by handlers.RegisterRoutes.
func Describe(cfg *config.Config, version string) *Document {
	doc := New(cfg.App.Name, version).
		Description("Token session API: short-lived bearer access tokens and a rotating refresh token cookie.").
		Tag("auth", "Signup, login, refresh and logout").
		Tag("users", "Authenticated user endpoints").
		BearerAuth(bearerScheme, "Access token returned by signup, login or refresh").
		CookieAuth(refreshScheme, cfg.Cookie.Name, "HttpOnly refresh token cookie, rotated on every refresh")

	prefix := cfg.Server.APIPrefix
	cookieNote := "HttpOnly, SameSite=Strict refresh token cookie"

	doc.Route(http.MethodPost, prefix+"/auth/signup").
		Summary("Create an account and start a session").
		Tags("auth").
		Body(session.SignupInput{}, "New account details").
		Response(http.StatusCreated, handlers.AuthResponse{}, "Account created").
		SetsCookie(http.StatusCreated, cookieNote).
		Response(http.StatusBadRequest, handlers.ErrorResponse{}, "Missing fields, invalid input or duplicate account").
		Build()

	doc.Route(http.MethodPost, prefix+"/auth/login").
		Summary("Log in with username or email").
		Tags("auth").
		Body(session.LoginInput{}, "Credentials").
		Response(http.StatusOK, handlers.AuthResponse{}, "Logged in").
		SetsCookie(http.StatusOK, cookieNote).
		Response(http.StatusBadRequest, handlers.ErrorResponse{}, "Missing fields or invalid credentials").
		Build()

	doc.Route(http.MethodPost, prefix+"/auth/refresh").
		Summary("Exchange the refresh cookie for a new access token").
		Tags("auth").
		Security(refreshScheme).
		Response(http.StatusOK, handlers.RefreshResponse{}, "New access token; the refresh cookie is rotated").
		SetsCookie(http.StatusOK, cookieNote).
		Response(http.StatusUnauthorized, handlers.ErrorResponse{}, "No refresh cookie").
		Response(http.StatusForbidden, handlers.ErrorResponse{}, "Invalid, expired or reused refresh token").
		Response(http.StatusNotFound, handlers.ErrorResponse{}, "User no longer exists").
		Build()

	doc.Route(http.MethodPost, prefix+"/auth/logout").
		Summary("End the session").
		Tags("auth").
		Response(http.StatusOK, handlers.MessageResponse{}, "Logged out; the refresh cookie is cleared").
		SetsCookie(http.StatusOK, "Expired refresh token cookie").
		Build()

	doc.Route(http.MethodGet, prefix+"/users/me").
		Summary("Current user").
		Tags("users").
		Security(bearerScheme).
		Response(http.StatusOK, struct {
			User users.User `json:"user"`
		}{}, "The authenticated user").
		Response(http.StatusUnauthorized, handlers.ErrorResponse{}, "Missing, invalid or expired access token").
		Build()

	doc.Route(http.MethodGet, "/healthz").
		Summary("Liveness probe").
		Response(http.StatusOK, map[string]string{}, "Service is up").
		Build()

	return doc
}
