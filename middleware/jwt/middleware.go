package jwt

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/authsession/internal/apperror"
	jwtservice "github.com/tech-arch1tect/authsession/services/jwt"
	"github.com/tech-arch1tect/authsession/services/users"
)

const (
	UserIDKey = "_jwt_user_id"
	ClaimsKey = "_jwt_claims"
	UserKey   = "_jwt_user"
)

type TokenVerifier interface {
	VerifyAccessToken(tokenString string) (*jwtservice.Claims, error)
}

type UserLoader interface {
	CurrentUser(ctx context.Context, userID uint) (*users.User, error)
}

// RequireAccessToken rejects requests without a valid bearer access token
// and exposes the resolved user to downstream handlers. Expired tokens are
// rejected like any other; refreshing is left to the client.
func RequireAccessToken(tokens TokenVerifier, loader UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return apperror.Unauthenticated("Authentication invalid", nil)
			}

			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if tokenString == "" {
				return apperror.Unauthenticated("Authentication invalid", nil)
			}

			claims, err := tokens.VerifyAccessToken(tokenString)
			if err != nil {
				return apperror.Unauthenticated("Authentication invalid or expired", err)
			}

			user, err := loader.CurrentUser(c.Request().Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, apperror.ErrInternal) {
					return err
				}
				return apperror.Unauthenticated("User not found", err)
			}

			c.Set(UserIDKey, user.ID)
			c.Set(ClaimsKey, claims)
			c.Set(UserKey, user)

			return next(c)
		}
	}
}

func GetUserID(c echo.Context) uint {
	if userID, ok := c.Get(UserIDKey).(uint); ok {
		return userID
	}
	return 0
}

func GetClaims(c echo.Context) *jwtservice.Claims {
	if claims, ok := c.Get(ClaimsKey).(*jwtservice.Claims); ok {
		return claims
	}
	return nil
}

func GetUser(c echo.Context) *users.User {
	if user, ok := c.Get(UserKey).(*users.User); ok {
		return user
	}
	return nil
}
