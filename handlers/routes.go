package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/authsession/config"
)

func RegisterRoutes(e *echo.Echo, cfg *config.Config, auth *AuthHandler, guard echo.MiddlewareFunc) {
	e.GET("/healthz", Health)

	api := e.Group(cfg.Server.APIPrefix)

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", auth.Signup)
	authGroup.POST("/login", auth.Login)
	authGroup.POST("/refresh", auth.Refresh)
	authGroup.POST("/logout", auth.Logout)

	api.GET("/users/me", Me, guard)
}
