package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/authsession/config"
	"github.com/tech-arch1tect/authsession/internal/apperror"
	"github.com/tech-arch1tect/authsession/services/auth"
	"github.com/tech-arch1tect/authsession/services/jwt"
	"github.com/tech-arch1tect/authsession/services/metrics"
	"github.com/tech-arch1tect/authsession/services/users"
	"github.com/tech-arch1tect/authsession/testutils"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	manager *Manager
	store   users.Store
	tokens  *jwt.Service
	metrics *metrics.Service
	clock   *fakeClock
}

func newFixture(t *testing.T, store users.Store) *fixture {
	t.Helper()
	cfg := testutils.GetTestConfig()
	if store == nil {
		store = users.NewGormStore(testutils.SetupTestDB(t, &users.User{}), nil)
	}
	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	tokens := jwt.NewService(&cfg.JWT, nil, jwt.WithClock(clock.Now))
	m := metrics.NewService()

	return &fixture{
		manager: NewManager(store, auth.NewService(&cfg.Auth, nil), tokens, m, nil),
		store:   store,
		tokens:  tokens,
		metrics: m,
		clock:   clock,
	}
}

func aliceSignup() SignupInput {
	alice := testutils.TestUsers.Alice
	return SignupInput{Name: alice.Name, Username: alice.Username, Email: alice.Email, Password: alice.Password}
}

func (f *fixture) signupAlice(t *testing.T) *Result {
	t.Helper()
	result, err := f.manager.Signup(context.Background(), aliceSignup())
	require.NoError(t, err)
	return result
}

func (f *fixture) storedHash(t *testing.T, id uint) *string {
	t.Helper()
	user, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user.RefreshTokenHash
}

func counterValue(t *testing.T, m *metrics.Service, name, result string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if len(metric.GetLabel()) == 0 && result == "" {
				return metric.GetCounter().GetValue()
			}
			for _, lp := range metric.GetLabel() {
				if lp.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func assertAppError(t *testing.T, err error, sentinel error, status int, msg string) {
	t.Helper()
	testutils.AssertErrorType(t, sentinel, err)
	assert.Equal(t, status, apperror.Status(err))
	if msg != "" {
		assert.Equal(t, msg, apperror.Message(err))
	}
}

func TestManager_Signup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result := f.signupAlice(t)

	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "alice", result.User.Username)
	assert.Equal(t, "alice@x.com", result.User.Email)
	assert.NotZero(t, result.User.ID)
	assert.Equal(t, f.clock.Now().Add(12*time.Hour), result.RefreshExpiresAt)

	user, err := f.store.FindByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.NotEqual(t, testutils.TestUsers.Alice.Password, user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(testutils.TestUsers.Alice.Password)))
	require.NotNil(t, user.RefreshTokenHash)
	assert.Equal(t, HashRefreshToken(result.RefreshToken), *user.RefreshTokenHash)

	claims, err := f.tokens.VerifyAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)

	assert.Equal(t, float64(1), counterValue(t, f.metrics, "authsession_signups_total", metrics.ResultSuccess))
}

func TestManager_Signup_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SignupInput)
		msg    string
	}{
		{"missing username", func(in *SignupInput) { in.Username = "" }, "Username, email, and password are required"},
		{"missing email", func(in *SignupInput) { in.Email = "" }, "Username, email, and password are required"},
		{"missing password", func(in *SignupInput) { in.Password = "" }, "Username, email, and password are required"},
		{"missing password wins over bad email", func(in *SignupInput) {
			in.Email = "nope"
			in.Password = ""
		}, "Username, email, and password are required"},
		{"malformed email", func(in *SignupInput) { in.Email = "not-an-email" }, "email must be a valid email address"},
		{"weak password", func(in *SignupInput) { in.Password = "short" }, "password must be at least 8 characters"},
		{"password without number", func(in *SignupInput) { in.Password = testutils.TestPasswords.NoNumber }, "password must contain at least one number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			in := aliceSignup()
			tt.mutate(&in)

			result, err := f.manager.Signup(context.Background(), in)

			assert.Nil(t, result)
			assertAppError(t, err, apperror.ErrValidation, 400, tt.msg)
			_, lookupErr := f.store.FindByUsernameOrEmail(context.Background(), "alice", "alice@x.com")
			assert.ErrorIs(t, lookupErr, users.ErrUserNotFound)
		})
	}
}

func TestManager_Signup_DefaultPolicy(t *testing.T) {
	var authCfg config.AuthConfig
	require.NoError(t, env.ParseWithOptions(&authCfg, env.Options{Prefix: "AUTH_"}))
	authCfg.BcryptCost = bcrypt.MinCost

	f := newFixture(t, nil)
	f.manager = NewManager(f.store, auth.NewService(&authCfg, nil), f.tokens, f.metrics, nil)
	ctx := context.Background()

	result, err := f.manager.Signup(ctx, SignupInput{Username: "bob", Email: "bob", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "bob", result.User.Email)

	login, err := f.manager.Login(ctx, LoginInput{Identifier: "bob", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)
}

func TestManager_Signup_Conflict(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SignupInput)
	}{
		{"same username", func(in *SignupInput) { in.Email = "other@x.com" }},
		{"same email", func(in *SignupInput) { in.Username = "other" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.signupAlice(t)
			in := aliceSignup()
			tt.mutate(&in)

			_, err := f.manager.Signup(context.Background(), in)

			assertAppError(t, err, apperror.ErrConflict, 400, "Email or username already in use")
		})
	}
}

func TestManager_Signup_InsertRace(t *testing.T) {
	store := &mockStore{}
	f := newFixture(t, store)
	store.On("FindByUsernameOrEmail", mock.Anything, "alice", "alice@x.com").Return(nil, users.ErrUserNotFound)
	store.On("Create", mock.Anything, mock.AnythingOfType("*users.User")).Return(users.ErrDuplicateUser)

	_, err := f.manager.Signup(context.Background(), aliceSignup())

	assertAppError(t, err, apperror.ErrConflict, 400, "")
	store.AssertNotCalled(t, "SetRefreshHash", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_Signup_StoreFailure(t *testing.T) {
	store := &mockStore{}
	f := newFixture(t, store)
	store.On("FindByUsernameOrEmail", mock.Anything, "alice", "alice@x.com").Return(nil, errors.New("connection refused"))

	_, err := f.manager.Signup(context.Background(), aliceSignup())

	assertAppError(t, err, apperror.ErrInternal, 500, apperror.InternalMessage)
	assert.Equal(t, float64(1), counterValue(t, f.metrics, "authsession_signups_total", metrics.ResultError))
}

func TestManager_Login(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	signup := f.signupAlice(t)

	for _, identifier := range []string{"alice", "alice@x.com"} {
		t.Run("by "+identifier, func(t *testing.T) {
			result, err := f.manager.Login(ctx, LoginInput{Identifier: identifier, Password: testutils.TestUsers.Alice.Password})
			require.NoError(t, err)

			assert.Equal(t, signup.User, result.User)
			assert.NotEqual(t, signup.RefreshToken, result.RefreshToken)
			assert.Equal(t, HashRefreshToken(result.RefreshToken), *f.storedHash(t, signup.User.ID))
		})
	}
}

func TestManager_Login_OverwritesPreviousSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	signup := f.signupAlice(t)

	_, err := f.manager.Login(ctx, LoginInput{Identifier: "alice", Password: testutils.TestUsers.Alice.Password})
	require.NoError(t, err)

	_, err = f.manager.Refresh(ctx, signup.RefreshToken)
	assertAppError(t, err, apperror.ErrInvalidToken, 403, "Invalid refresh token")
}

func TestManager_Login_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	f.signupAlice(t)

	tests := []struct {
		name     string
		input    LoginInput
		sentinel error
		msg      string
	}{
		{"missing identifier", LoginInput{Password: "x"}, apperror.ErrValidation, "Username/Email and password are required"},
		{"missing password", LoginInput{Identifier: "alice"}, apperror.ErrValidation, "Username/Email and password are required"},
		{"unknown user", LoginInput{Identifier: "carol", Password: "P@ssw0rd1"}, apperror.ErrInvalidCredentials, "Invalid credentials"},
		{"wrong password", LoginInput{Identifier: "alice", Password: "Wr0ngPassword"}, apperror.ErrInvalidCredentials, "Invalid credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.manager.Login(context.Background(), tt.input)

			assert.Nil(t, result)
			assertAppError(t, err, tt.sentinel, 400, tt.msg)
		})
	}

	assert.Equal(t, float64(4), counterValue(t, f.metrics, "authsession_logins_total", metrics.ResultRejected))
}

func TestManager_Refresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	signup := f.signupAlice(t)

	f.clock.Advance(time.Hour)
	result, err := f.manager.Refresh(ctx, signup.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, signup.RefreshToken, result.RefreshToken)
	assert.NotEqual(t, signup.AccessToken, result.AccessToken)
	assert.Equal(t, f.clock.Now().Add(12*time.Hour), result.RefreshExpiresAt)
	assert.Equal(t, HashRefreshToken(result.RefreshToken), *f.storedHash(t, signup.User.ID))

	claims, err := f.tokens.VerifyAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, claims.UserID)

	next, err := f.manager.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, result.RefreshToken, next.RefreshToken)
}

func TestManager_Refresh_SameSecondRotationChangesHash(t *testing.T) {
	f := newFixture(t, nil)
	signup := f.signupAlice(t)

	result, err := f.manager.Refresh(context.Background(), signup.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, HashRefreshToken(signup.RefreshToken), *f.storedHash(t, signup.User.ID))
	assert.Equal(t, HashRefreshToken(result.RefreshToken), *f.storedHash(t, signup.User.ID))
}

func TestManager_Refresh_ReuseClearsSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	signup := f.signupAlice(t)

	rotated, err := f.manager.Refresh(ctx, signup.RefreshToken)
	require.NoError(t, err)

	f.clock.Advance(11 * time.Second)
	_, err = f.manager.Refresh(ctx, signup.RefreshToken)
	assertAppError(t, err, apperror.ErrInvalidToken, 403, "Invalid refresh token")
	assert.ErrorIs(t, err, ErrRefreshTokenReused)
	assert.Nil(t, f.storedHash(t, signup.User.ID))

	_, err = f.manager.Refresh(ctx, rotated.RefreshToken)
	assertAppError(t, err, apperror.ErrInvalidToken, 403, "Invalid refresh token")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	assert.Equal(t, float64(1), counterValue(t, f.metrics, "authsession_refresh_reuse_detected_total", ""))
}

func TestManager_Refresh_JustRotatedTokenKeepsSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	signup := f.signupAlice(t)

	rotated, err := f.manager.Refresh(ctx, signup.RefreshToken)
	require.NoError(t, err)

	f.clock.Advance(9 * time.Second)
	_, err = f.manager.Refresh(ctx, signup.RefreshToken)
	assertAppError(t, err, apperror.ErrInvalidToken, 403, "Invalid refresh token")
	assert.ErrorIs(t, err, ErrRotationConflict)
	assert.Equal(t, HashRefreshToken(rotated.RefreshToken), *f.storedHash(t, signup.User.ID))
	assert.Zero(t, counterValue(t, f.metrics, "authsession_refresh_reuse_detected_total", ""))

	next, err := f.manager.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, rotated.RefreshToken, next.RefreshToken)

	// the original is now two rotations old, which is reuse
	_, err = f.manager.Refresh(ctx, signup.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenReused)
	assert.Nil(t, f.storedHash(t, signup.User.ID))
}

func TestManager_Refresh_Rejections(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.manager.Refresh(context.Background(), "")

		assertAppError(t, err, apperror.ErrMissingToken, 401, "Refresh token not found")
	})

	t.Run("garbage token", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.manager.Refresh(context.Background(), "garbage")

		assertAppError(t, err, apperror.ErrInvalidToken, 403, "Invalid or expired refresh token")
	})

	t.Run("access token presented", func(t *testing.T) {
		f := newFixture(t, nil)
		signup := f.signupAlice(t)

		_, err := f.manager.Refresh(context.Background(), signup.AccessToken)

		assertAppError(t, err, apperror.ErrInvalidToken, 403, "Invalid or expired refresh token")
		assert.NotNil(t, f.storedHash(t, signup.User.ID))
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t, nil)
		signup := f.signupAlice(t)
		f.clock.Advance(12*time.Hour + time.Second)

		_, err := f.manager.Refresh(context.Background(), signup.RefreshToken)

		assertAppError(t, err, apperror.ErrInvalidToken, 403, "Invalid or expired refresh token")
		assert.ErrorIs(t, err, jwt.ErrExpiredToken)
	})

	t.Run("user no longer exists", func(t *testing.T) {
		f := newFixture(t, nil)
		token, err := f.tokens.IssueRefreshToken(999)
		require.NoError(t, err)

		_, err = f.manager.Refresh(context.Background(), token)

		assertAppError(t, err, apperror.ErrUserNotFound, 404, "User not found")
	})

	t.Run("after logout", func(t *testing.T) {
		f := newFixture(t, nil)
		signup := f.signupAlice(t)
		require.True(t, f.manager.Logout(context.Background(), signup.RefreshToken))

		_, err := f.manager.Refresh(context.Background(), signup.RefreshToken)

		assertAppError(t, err, apperror.ErrInvalidToken, 403, "Invalid refresh token")
	})
}

func TestManager_Refresh_RotationConflict(t *testing.T) {
	store := &mockStore{}
	f := newFixture(t, store)
	token, err := f.tokens.IssueRefreshToken(1)
	require.NoError(t, err)
	hash := HashRefreshToken(token)

	store.On("FindByID", mock.Anything, uint(1)).Return(&users.User{ID: 1, Username: "alice", RefreshTokenHash: &hash}, nil)
	store.On("SwapRefreshHash", mock.Anything, uint(1), hash, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(false, nil)

	_, err = f.manager.Refresh(context.Background(), token)

	assertAppError(t, err, apperror.ErrInvalidToken, 403, "Invalid refresh token")
	assert.ErrorIs(t, err, ErrRotationConflict)
	store.AssertNotCalled(t, "SetRefreshHash", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestManager_Refresh_ClearFailure(t *testing.T) {
	store := &mockStore{}
	f := newFixture(t, store)
	token, err := f.tokens.IssueRefreshToken(1)
	require.NoError(t, err)
	stale := "stale-hash"

	store.On("FindByID", mock.Anything, uint(1)).Return(&users.User{ID: 1, RefreshTokenHash: &stale}, nil)
	store.On("SetRefreshHash", mock.Anything, uint(1), (*string)(nil)).Return(errors.New("disk full"))

	_, err = f.manager.Refresh(context.Background(), token)

	assertAppError(t, err, apperror.ErrInternal, 500, apperror.InternalMessage)
	store.AssertExpectations(t)
}

func TestManager_Refresh_Concurrent(t *testing.T) {
	f := newFixture(t, nil)
	signup := f.signupAlice(t)

	const callers = 2
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.manager.Refresh(context.Background(), signup.RefreshToken)
		}(i)
	}
	wg.Wait()

	var winner *Result
	for i := 0; i < callers; i++ {
		if errs[i] == nil {
			require.Nil(t, winner, "more than one refresh succeeded")
			winner = results[i]
			continue
		}
		assertAppError(t, errs[i], apperror.ErrInvalidToken, 403, "Invalid refresh token")
		assert.ErrorIs(t, errs[i], ErrRotationConflict)
	}
	require.NotNil(t, winner)

	next, err := f.manager.Refresh(context.Background(), winner.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)
	assert.Zero(t, counterValue(t, f.metrics, "authsession_refresh_reuse_detected_total", ""))
}

func TestManager_Logout(t *testing.T) {
	t.Run("clears stored hash", func(t *testing.T) {
		f := newFixture(t, nil)
		signup := f.signupAlice(t)

		assert.True(t, f.manager.Logout(context.Background(), signup.RefreshToken))
		assert.Nil(t, f.storedHash(t, signup.User.ID))
	})

	t.Run("no token", func(t *testing.T) {
		f := newFixture(t, nil)

		assert.False(t, f.manager.Logout(context.Background(), ""))
	})

	t.Run("invalid token leaves session intact", func(t *testing.T) {
		f := newFixture(t, nil)
		signup := f.signupAlice(t)

		assert.False(t, f.manager.Logout(context.Background(), "garbage"))
		assert.NotNil(t, f.storedHash(t, signup.User.ID))
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t, nil)
		token, err := f.tokens.IssueRefreshToken(42)
		require.NoError(t, err)

		assert.False(t, f.manager.Logout(context.Background(), token))
	})

	t.Run("store panic is contained", func(t *testing.T) {
		store := &mockStore{}
		f := newFixture(t, store)
		token, err := f.tokens.IssueRefreshToken(1)
		require.NoError(t, err)
		store.On("SetRefreshHash", mock.Anything, uint(1), (*string)(nil)).
			Run(func(mock.Arguments) { panic("driver bug") }).
			Return(nil)

		assert.NotPanics(t, func() {
			assert.False(t, f.manager.Logout(context.Background(), token))
		})
	})
}

func TestManager_CurrentUser(t *testing.T) {
	f := newFixture(t, nil)
	signup := f.signupAlice(t)

	user, err := f.manager.CurrentUser(context.Background(), signup.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = f.manager.CurrentUser(context.Background(), signup.User.ID+1)
	assertAppError(t, err, apperror.ErrUserNotFound, 404, "")
}

func TestAttempt(t *testing.T) {
	assert.NoError(t, attempt(func() error { return nil }))
	assert.EqualError(t, attempt(func() error { return errors.New("boom") }), "boom")
	assert.ErrorContains(t, attempt(func() error { panic("kaboom") }), "kaboom")
}

func TestHashRefreshToken(t *testing.T) {
	a := HashRefreshToken("token-a")

	assert.Len(t, a, 64)
	assert.Equal(t, a, HashRefreshToken("token-a"))
	assert.NotEqual(t, a, HashRefreshToken("token-b"))
	assert.True(t, hashesEqual(a, HashRefreshToken("token-a")))
	assert.False(t, hashesEqual(a, HashRefreshToken("token-b")))
}
