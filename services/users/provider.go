package users

import (
	"github.com/tech-arch1tect/authsession/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideStore(db *gorm.DB, logger *logging.Service) Store {
	return NewGormStore(db, logger.Named("users"))
}

var Module = fx.Options(
	fx.Provide(ProvideStore),
)
