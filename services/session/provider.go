package session

import (
	"github.com/tech-arch1tect/authsession/services/auth"
	"github.com/tech-arch1tect/authsession/services/jwt"
	"github.com/tech-arch1tect/authsession/services/logging"
	"github.com/tech-arch1tect/authsession/services/metrics"
	"github.com/tech-arch1tect/authsession/services/users"
	"go.uber.org/fx"
)

func ProvideManager(store users.Store, passwords *auth.Service, tokens *jwt.Service, m *metrics.Service, logger *logging.Service) *Manager {
	return NewManager(store, passwords, tokens, m, logger.Named("session"))
}

var Module = fx.Options(
	fx.Provide(ProvideManager),
)
