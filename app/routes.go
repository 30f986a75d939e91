package app

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/authsession/config"
	"github.com/tech-arch1tect/authsession/handlers"
	jwtmw "github.com/tech-arch1tect/authsession/middleware/jwt"
	"github.com/tech-arch1tect/authsession/openapi"
	"github.com/tech-arch1tect/authsession/server"
	"github.com/tech-arch1tect/authsession/services/metrics"
	"github.com/tech-arch1tect/authsession/services/session"
)

func registerRoutes(srv *server.Server, cfg *config.Config, authHandler *handlers.AuthHandler, sessions *session.Manager, m *metrics.Service) {
	e := srv.Echo()

	if cfg.Metrics.Enabled {
		e.Use(m.Middleware())
		e.GET(cfg.Metrics.Path, echo.WrapHandler(m.Handler()))
	}

	handlers.RegisterRoutes(e, cfg, authHandler, jwtmw.RequireAccessToken(sessions, sessions))

	doc := openapi.Describe(cfg, Version)
	e.GET("/openapi.json", doc.JSONHandler())
	e.GET("/openapi.yaml", doc.YAMLHandler())
}
