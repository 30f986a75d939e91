package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/authsession/config"
	"github.com/tech-arch1tect/authsession/database"
	"github.com/tech-arch1tect/authsession/handlers"
	"github.com/tech-arch1tect/authsession/internal/options"
	"github.com/tech-arch1tect/authsession/server"
	"github.com/tech-arch1tect/authsession/services/auth"
	"github.com/tech-arch1tect/authsession/services/jwt"
	"github.com/tech-arch1tect/authsession/services/logging"
	"github.com/tech-arch1tect/authsession/services/metrics"
	"github.com/tech-arch1tect/authsession/services/session"
	"github.com/tech-arch1tect/authsession/services/users"
	"go.uber.org/fx"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

type AppBuilder struct {
	config    *config.Config
	clock     func() time.Time
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

// New builds an application from functional options.
func New(opts ...options.Option) (*App, error) {
	o := &options.Options{}
	for _, opt := range opts {
		opt(o)
	}

	b := NewApp()
	if o.Config != nil {
		b.WithConfig(o.Config)
	}
	if o.Clock != nil {
		b.WithClock(o.Clock)
	}
	b.WithFxOptions(o.ExtraFxOptions...)
	return b.Build()
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithClock replaces the time source used to mint and verify tokens.
func (b *AppBuilder) WithClock(now func() time.Time) *AppBuilder {
	if now == nil {
		b.addError("clock cannot be nil")
		return b
	}
	b.clock = now
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	} else if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{config: b.config}

	fxOptions := b.buildFxOptions()
	fxOptions = append(fxOptions, fx.Populate(&app.logger, &app.db, &app.server, &app.sessions))

	app.fx = fx.New(fxOptions...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}
	return nil
}

func (b *AppBuilder) buildFxOptions() []fx.Option {
	opts := []fx.Option{
		config.NewProvider(b.config),
		fx.NopLogger,
		logging.Module,
		fx.Supply(database.WithModels(&users.User{})),
		database.Module,
		users.Module,
		auth.Module,
		jwt.Options,
		metrics.Module,
		session.Module,
		handlers.Module,
		server.NewProvider(),
		fx.Invoke(registerRoutes),
	}

	if b.clock != nil {
		clock := b.clock
		opts = append(opts, fx.Decorate(func(_ *jwt.Service, cfg *config.Config, logger *logging.Service) *jwt.Service {
			return jwt.NewService(&cfg.JWT, logger.Named("jwt"), jwt.WithClock(clock))
		}))
	}

	return append(opts, b.fxOptions...)
}
