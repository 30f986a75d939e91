package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/authsession/internal/apperror"
	"github.com/tech-arch1tect/authsession/services/logging"
	"github.com/tech-arch1tect/authsession/services/session"
	"github.com/tech-arch1tect/authsession/services/users"
	"go.uber.org/zap"
)

type AuthResponse struct {
	Msg         string        `json:"msg"`
	AccessToken string        `json:"accessToken"`
	User        users.Summary `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type MessageResponse struct {
	Msg string `json:"msg"`
}

type AuthHandler struct {
	sessions *session.Manager
	cookie   RefreshCookie
	logger   *logging.Service
}

func NewAuthHandler(sessions *session.Manager, cookie RefreshCookie, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		cookie:   cookie,
		logger:   logger,
	}
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var in session.SignupInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("Invalid request body")
	}

	result, err := h.sessions.Signup(c.Request().Context(), in)
	if err != nil {
		h.logger.Debug("signup failed", append(clientInfo(c).Fields(), zap.Error(err))...)
		return err
	}

	h.logger.Info("signup succeeded", append(clientInfo(c).Fields(), zap.Uint("user_id", result.User.ID))...)
	h.cookie.Set(c, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(http.StatusCreated, AuthResponse{
		Msg:         "User created successfully",
		AccessToken: result.AccessToken,
		User:        result.User,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var in session.LoginInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("Invalid request body")
	}

	result, err := h.sessions.Login(c.Request().Context(), in)
	if err != nil {
		h.logger.Info("login failed", append(clientInfo(c).Fields(), zap.Error(err))...)
		return err
	}

	h.logger.Info("login succeeded", append(clientInfo(c).Fields(), zap.Uint("user_id", result.User.ID))...)
	h.cookie.Set(c, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(http.StatusOK, AuthResponse{
		Msg:         "Login successful",
		AccessToken: result.AccessToken,
		User:        result.User,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	result, err := h.sessions.Refresh(c.Request().Context(), h.cookie.Read(c))
	if err != nil {
		h.logger.Debug("refresh failed", append(clientInfo(c).Fields(), zap.Error(err))...)
		return err
	}

	h.cookie.Set(c, result.RefreshToken, result.RefreshExpiresAt)
	return c.JSON(http.StatusOK, RefreshResponse{AccessToken: result.AccessToken})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	token := h.cookie.Read(c)
	h.cookie.Clear(c)

	cleared := h.sessions.Logout(c.Request().Context(), token)
	h.logger.Debug("logout", append(clientInfo(c).Fields(), zap.Bool("session_cleared", cleared))...)

	return c.JSON(http.StatusOK, MessageResponse{Msg: "Logged out successfully"})
}
