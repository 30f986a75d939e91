// Package session owns the token session lifecycle: signup, login, refresh
// rotation with reuse detection, and best-effort logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tech-arch1tect/authsession/internal/apperror"
	"github.com/tech-arch1tect/authsession/services/auth"
	"github.com/tech-arch1tect/authsession/services/jwt"
	"github.com/tech-arch1tect/authsession/services/logging"
	"github.com/tech-arch1tect/authsession/services/metrics"
	"github.com/tech-arch1tect/authsession/services/users"
	"go.uber.org/zap"
)

var (
	ErrRefreshTokenReused = errors.New("refresh token does not match the stored session")
	ErrRotationConflict   = errors.New("refresh token was rotated concurrently")
	ErrNoActiveSession    = errors.New("no refresh token stored for user")
)

type Result struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             users.Summary
}

type Manager struct {
	users     users.Store
	passwords *auth.Service
	tokens    *jwt.Service
	metrics   *metrics.Service
	logger    *logging.Service
	validate  *validator.Validate
}

func NewManager(store users.Store, passwords *auth.Service, tokens *jwt.Service, m *metrics.Service, logger *logging.Service) *Manager {
	return &Manager{
		users:     store,
		passwords: passwords,
		tokens:    tokens,
		metrics:   m,
		logger:    logger,
		validate:  newValidator(),
	}
}

func (m *Manager) Signup(ctx context.Context, in SignupInput) (*Result, error) {
	if err := validateInput(m.validate, in, signupRequiredMessage); err != nil {
		m.metrics.RecordSignup(metrics.ResultRejected)
		return nil, err
	}

	if m.passwords.RequiresValidEmail() && m.validate.Var(in.Email, "email") != nil {
		m.metrics.RecordSignup(metrics.ResultRejected)
		return nil, apperror.Validation("email must be a valid email address")
	}

	if err := m.passwords.ValidatePassword(in.Password); err != nil {
		m.metrics.RecordSignup(metrics.ResultRejected)
		return nil, apperror.Validation(err.Error())
	}

	_, err := m.users.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		m.metrics.RecordSignup(metrics.ResultRejected)
		return nil, apperror.Conflict("Email or username already in use")
	case !errors.Is(err, users.ErrUserNotFound):
		m.metrics.RecordSignup(metrics.ResultError)
		return nil, apperror.Internal(err)
	}

	hash, err := m.passwords.HashPassword(in.Password)
	if err != nil {
		m.metrics.RecordSignup(metrics.ResultError)
		return nil, apperror.Internal(err)
	}

	user := &users.User{
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := m.users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrDuplicateUser) {
			m.metrics.RecordSignup(metrics.ResultRejected)
			return nil, apperror.Conflict("Email or username already in use")
		}
		m.metrics.RecordSignup(metrics.ResultError)
		return nil, apperror.Internal(err)
	}

	result, err := m.startSession(ctx, user)
	if err != nil {
		m.metrics.RecordSignup(metrics.ResultError)
		return nil, err
	}

	m.metrics.RecordSignup(metrics.ResultSuccess)
	m.logger.Info("user signed up", zap.Uint("user_id", user.ID))
	return result, nil
}

func (m *Manager) Login(ctx context.Context, in LoginInput) (*Result, error) {
	if err := validateInput(m.validate, in, loginRequiredMessage); err != nil {
		m.metrics.RecordLogin(metrics.ResultRejected)
		return nil, err
	}

	user, err := m.users.FindByUsernameOrEmail(ctx, in.Identifier, in.Identifier)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			m.metrics.RecordLogin(metrics.ResultRejected)
			m.logger.Debug("login rejected: unknown identifier")
			return nil, apperror.InvalidCredentials()
		}
		m.metrics.RecordLogin(metrics.ResultError)
		return nil, apperror.Internal(err)
	}

	if err := m.passwords.VerifyPassword(user.PasswordHash, in.Password); err != nil {
		m.metrics.RecordLogin(metrics.ResultRejected)
		m.logger.Debug("login rejected: password mismatch", zap.Uint("user_id", user.ID))
		return nil, apperror.InvalidCredentials()
	}

	result, err := m.startSession(ctx, user)
	if err != nil {
		m.metrics.RecordLogin(metrics.ResultError)
		return nil, err
	}

	m.metrics.RecordLogin(metrics.ResultSuccess)
	m.logger.Info("user logged in", zap.Uint("user_id", user.ID))
	return result, nil
}

// Refresh exchanges a refresh token for a new access/refresh pair. The
// presented token stops working once this returns successfully.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	if refreshToken == "" {
		m.metrics.RecordRefresh(metrics.ResultRejected)
		return nil, apperror.MissingToken("Refresh token not found")
	}

	claims, err := m.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		m.metrics.RecordRefresh(metrics.ResultRejected)
		return nil, apperror.InvalidToken("Invalid or expired refresh token", err)
	}

	user, err := m.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			m.metrics.RecordRefresh(metrics.ResultRejected)
			return nil, apperror.UserNotFound()
		}
		m.metrics.RecordRefresh(metrics.ResultError)
		return nil, apperror.Internal(err)
	}

	if !user.HasRefreshToken() {
		m.metrics.RecordRefresh(metrics.ResultRejected)
		return nil, apperror.InvalidToken("Invalid refresh token", ErrNoActiveSession)
	}

	presented := HashRefreshToken(refreshToken)
	now := m.tokens.Now()
	if !hashesEqual(presented, *user.RefreshTokenHash) {
		if user.RecentlySuperseded(presented, now, m.tokens.RotationGrace()) {
			m.metrics.RecordRefresh(metrics.ResultRejected)
			m.logger.Info("refresh presented a just-rotated token", zap.Uint("user_id", user.ID))
			return nil, apperror.InvalidToken("Invalid refresh token", ErrRotationConflict)
		}

		m.metrics.RecordReuseDetected()
		m.logger.Warn("refresh token reuse detected, clearing stored session", zap.Uint("user_id", user.ID))

		if err := m.users.SetRefreshHash(ctx, user.ID, nil); err != nil {
			m.metrics.RecordRefresh(metrics.ResultError)
			return nil, apperror.Internal(fmt.Errorf("failed to clear session after reuse: %w", err))
		}
		m.metrics.RecordRefresh(metrics.ResultRejected)
		return nil, apperror.InvalidToken("Invalid refresh token", ErrRefreshTokenReused)
	}

	result, err := m.issue(user)
	if err != nil {
		m.metrics.RecordRefresh(metrics.ResultError)
		return nil, err
	}

	swapped, err := m.users.SwapRefreshHash(ctx, user.ID, presented, HashRefreshToken(result.RefreshToken), now)
	if err != nil {
		m.metrics.RecordRefresh(metrics.ResultError)
		return nil, apperror.Internal(err)
	}
	if !swapped {
		m.metrics.RecordRefresh(metrics.ResultRejected)
		m.logger.Info("refresh lost rotation race", zap.Uint("user_id", user.ID))
		return nil, apperror.InvalidToken("Invalid refresh token", ErrRotationConflict)
	}

	m.metrics.RecordRefresh(metrics.ResultSuccess)
	m.logger.Debug("refresh token rotated", zap.Uint("user_id", user.ID))
	return result, nil
}

// Logout clears the stored session for the presented refresh token when it
// can. It never fails; the returned flag reports whether a hash was cleared.
func (m *Manager) Logout(ctx context.Context, refreshToken string) bool {
	if refreshToken == "" {
		m.metrics.RecordLogout(false)
		return false
	}

	var cleared bool
	err := attempt(func() error {
		claims, err := m.tokens.VerifyRefreshToken(refreshToken)
		if err != nil {
			return err
		}
		if err := m.users.SetRefreshHash(ctx, claims.UserID, nil); err != nil {
			return err
		}
		cleared = true
		m.logger.Info("user logged out", zap.Uint("user_id", claims.UserID))
		return nil
	})
	if err != nil {
		m.logger.Debug("logout cleanup skipped", zap.Error(err))
	}

	m.metrics.RecordLogout(cleared)
	return cleared
}

// CurrentUser loads the user an access token was issued to.
func (m *Manager) CurrentUser(ctx context.Context, userID uint) (*users.User, error) {
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, apperror.UserNotFound()
		}
		return nil, apperror.Internal(err)
	}
	return user, nil
}

// VerifyAccessToken exposes the token check used by the auth guard.
func (m *Manager) VerifyAccessToken(token string) (*jwt.Claims, error) {
	return m.tokens.VerifyAccessToken(token)
}

func (m *Manager) startSession(ctx context.Context, user *users.User) (*Result, error) {
	result, err := m.issue(user)
	if err != nil {
		return nil, err
	}

	hash := HashRefreshToken(result.RefreshToken)
	if err := m.users.SetRefreshHash(ctx, user.ID, &hash); err != nil {
		return nil, apperror.Internal(err)
	}
	user.RefreshTokenHash = &hash

	return result, nil
}

func (m *Manager) issue(user *users.User) (*Result, error) {
	accessToken, err := m.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	refreshToken, err := m.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	return &Result{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: m.tokens.Now().Add(m.tokens.RefreshExpiry()),
		User:             user.Summary(),
	}, nil
}

// attempt runs a best-effort step. Errors and panics are returned to the
// caller for logging and never propagate further.
func attempt(step func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("best-effort step panicked: %v", r)
		}
	}()
	return step()
}
