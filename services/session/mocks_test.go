package session

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tech-arch1tect/authsession/services/users"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*users.User, error) {
	args := m.Called(ctx, username, email)
	if u := args.Get(0); u != nil {
		return u.(*users.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) FindByID(ctx context.Context, id uint) (*users.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*users.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, user *users.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockStore) Save(ctx context.Context, user *users.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockStore) SetRefreshHash(ctx context.Context, id uint, hash *string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *mockStore) SwapRefreshHash(ctx context.Context, id uint, current, next string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, current, next, at)
	return args.Bool(0), args.Error(1)
}
