package testutils

import (
	"strings"
	"time"

	"github.com/tech-arch1tect/authsession/config"
	"golang.org/x/crypto/bcrypt"
)

const (
	TestAccessSecret  = "access-a1b2c3d4e5f6g7h8i9j0k1l2m3n4o5p6"
	TestRefreshSecret = "refresh-z9y8x7w6v5u4t3s2r1q0p9o8n7m6l5"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test App",
			Env:  "test",
		},
		Server: config.ServerConfig{
			Host:      "localhost",
			Port:      "5000",
			APIPrefix: "/api",
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "console",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		JWT: config.JWTConfig{
			AccessSecret:  TestAccessSecret,
			RefreshSecret: TestRefreshSecret,
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 12 * time.Hour,
			Issuer:        "test-issuer",
			RotationGrace: 10 * time.Second,
		},
		Auth: config.AuthConfig{
			MinLength:         8,
			RequireUpper:      true,
			RequireLower:      true,
			RequireNumber:     true,
			RequireValidEmail: true,
			BcryptCost:        bcrypt.MinCost,
		},
		Cookie: config.CookieConfig{
			Name: "refreshToken",
			Path: "/",
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

type TestUser struct {
	Name     string
	Username string
	Email    string
	Password string
}

var TestPasswords = struct {
	Valid     string
	NoSpecial string
	TooShort  string
	TooLong   string
	NoUpper   string
	NoLower   string
	NoNumber  string
}{
	Valid:     "P@ssw0rd1",
	NoSpecial: "Passw0rd1",
	TooShort:  "Pass1",
	TooLong:   "Aa1" + strings.Repeat("x", 70),
	NoUpper:   "password123",
	NoLower:   "PASSWORD123",
	NoNumber:  "Password",
}

var TestUsers = struct {
	Alice TestUser
	Bob   TestUser
}{
	Alice: TestUser{
		Name:     "Alice",
		Username: "alice",
		Email:    "alice@x.com",
		Password: "P@ssw0rd1",
	},
	Bob: TestUser{
		Username: "bob",
		Email:    "bob@x.com",
		Password: "Hunter2isWeak",
	},
}

// FixedTime is a stable starting instant for tests that drive a fake clock.
func FixedTime() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}
