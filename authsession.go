// Package authsession assembles the token session server.
package authsession

import (
	"time"

	"github.com/tech-arch1tect/authsession/app"
	"github.com/tech-arch1tect/authsession/config"
	"github.com/tech-arch1tect/authsession/internal/options"
)

type App = app.App

func New(opts ...options.Option) (*App, error) {
	return app.New(opts...)
}

func WithConfig(cfg *config.Config) options.Option {
	return options.WithConfig(cfg)
}

func WithClock(now func() time.Time) options.Option {
	return options.WithClock(now)
}
