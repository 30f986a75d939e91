package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Log      LogConfig      `envPrefix:"LOG_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	JWT      JWTConfig      `envPrefix:"JWT_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	Cookie   CookieConfig   `envPrefix:"COOKIE_"`
	Metrics  MetricsConfig  `envPrefix:"METRICS_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"authsession"`
	Env  string `env:"ENV" envDefault:"development"`
}

// IsProduction reports whether cookies must carry the Secure attribute.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

type ServerConfig struct {
	Port      string `env:"PORT" envDefault:"5000"`
	Host      string `env:"HOST" envDefault:"localhost"`
	APIPrefix string `env:"API_PREFIX" envDefault:"/api"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"authsession.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type JWTConfig struct {
	AccessSecret  string        `env:"ACCESS_SECRET"`
	RefreshSecret string        `env:"REFRESH_SECRET"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"12h"`
	Issuer        string        `env:"ISSUER" envDefault:"authsession"`
	// RotationGrace is how long a just-rotated refresh token is answered with
	// 403 instead of being treated as reuse.
	RotationGrace time.Duration `env:"ROTATION_GRACE" envDefault:"10s"`
}

// AuthConfig holds the opt-in signup policy. With the defaults any
// non-empty username, email and password are accepted.
type AuthConfig struct {
	MinLength         int  `env:"MIN_LENGTH" envDefault:"1"`
	RequireUpper      bool `env:"REQUIRE_UPPER" envDefault:"false"`
	RequireLower      bool `env:"REQUIRE_LOWER" envDefault:"false"`
	RequireNumber     bool `env:"REQUIRE_NUMBER" envDefault:"false"`
	RequireSpecial    bool `env:"REQUIRE_SPECIAL" envDefault:"false"`
	RequireValidEmail bool `env:"REQUIRE_VALID_EMAIL" envDefault:"false"`
	BcryptCost        int  `env:"BCRYPT_COST" envDefault:"10"`
}

type CookieConfig struct {
	Name string `env:"NAME" envDefault:"refreshToken"`
	Path string `env:"PATH" envDefault:"/"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

const minSecretLength = 32

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validateJWTConfig(&c.JWT); err != nil {
		return err
	}
	if c.Cookie.Name == "" {
		return errors.New("cookie name cannot be empty")
	}
	return nil
}

func validateJWTConfig(cfg *JWTConfig) error {
	if len(cfg.AccessSecret) < minSecretLength {
		return fmt.Errorf("JWT access secret must be at least %d characters long", minSecretLength)
	}
	if len(cfg.RefreshSecret) < minSecretLength {
		return fmt.Errorf("JWT refresh secret must be at least %d characters long", minSecretLength)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return errors.New("JWT access and refresh secrets must differ")
	}
	if cfg.AccessExpiry <= 0 || cfg.RefreshExpiry <= 0 {
		return errors.New("JWT expiries must be positive")
	}
	if cfg.RotationGrace < 0 || cfg.RotationGrace >= cfg.RefreshExpiry {
		return errors.New("JWT rotation grace must be non-negative and shorter than the refresh expiry")
	}
	return nil
}
