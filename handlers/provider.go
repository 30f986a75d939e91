package handlers

import (
	"github.com/tech-arch1tect/authsession/services/logging"
	"github.com/tech-arch1tect/authsession/services/session"
	"go.uber.org/fx"
)

func ProvideAuthHandler(sessions *session.Manager, cookie RefreshCookie, logger *logging.Service) *AuthHandler {
	return NewAuthHandler(sessions, cookie, logger.Named("http.auth"))
}

var Module = fx.Options(
	fx.Provide(
		NewRefreshCookie,
		ProvideAuthHandler,
	),
)
