package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/authsession/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already in use")
)

// Store is the credential store consumed by the session manager and the
// auth guard.
type Store interface {
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)
	FindByID(ctx context.Context, id uint) (*User, error)
	Create(ctx context.Context, user *User) error
	Save(ctx context.Context, user *User) error
	SetRefreshHash(ctx context.Context, id uint, hash *string) error
	SwapRefreshHash(ctx context.Context, id uint, current, next string, at time.Time) (bool, error)
}

type GormStore struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewGormStore(db *gorm.DB, logger *logging.Service) *GormStore {
	return &GormStore{
		db:     db,
		logger: logger,
	}
}

func (s *GormStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("failed to look up user by username or email", zap.Error(err))
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

func (s *GormStore) FindByID(ctx context.Context, id uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("failed to look up user by id", zap.Uint("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

func (s *GormStore) Create(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUser
		}
		s.logger.Error("failed to create user", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *GormStore) Save(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUser
		}
		s.logger.Error("failed to save user", zap.Uint("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// SetRefreshHash overwrites the stored refresh-token hash and forgets any
// rotation history; nil clears the session.
func (s *GormStore) SetRefreshHash(ctx context.Context, id uint, hash *string) error {
	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"refresh_token_hash":          hash,
			"previous_refresh_token_hash": nil,
			"refresh_rotated_at":          nil,
		})
	if result.Error != nil {
		s.logger.Error("failed to update refresh token hash", zap.Uint("user_id", id), zap.Error(result.Error))
		return fmt.Errorf("failed to update refresh token hash: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SwapRefreshHash replaces the stored hash only if it still equals current,
// remembering current as the previous hash rotated at the given time. It
// reports false when another writer rotated or cleared it first.
func (s *GormStore) SwapRefreshHash(ctx context.Context, id uint, current, next string, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ? AND refresh_token_hash = ?", id, current).
		Updates(map[string]any{
			"refresh_token_hash":          next,
			"previous_refresh_token_hash": current,
			"refresh_rotated_at":          at,
		})
	if result.Error != nil {
		s.logger.Error("failed to rotate refresh token hash", zap.Uint("user_id", id), zap.Error(result.Error))
		return false, fmt.Errorf("failed to rotate refresh token hash: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
