package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/authsession/config"
	"github.com/tech-arch1tect/authsession/services/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("invalid JWT token")
	ErrExpiredToken     = errors.New("JWT token has expired")
	ErrMalformedToken   = errors.New("malformed JWT token")
	ErrInvalidSignature = errors.New("invalid JWT token signature")
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

type Claims struct {
	UserID    uint      `json:"user_id"`
	TokenType TokenType `json:"token_type"`
	JTI       string    `json:"jti"`
	jwt.RegisteredClaims
}

type Option func(*Service)

// WithClock replaces time.Now for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

type Service struct {
	config *config.JWTConfig
	logger *logging.Service
	now    func() time.Time
}

func NewService(cfg *config.JWTConfig, logger *logging.Service, opts ...Option) *Service {
	s := &Service{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now reports the service clock, so callers can derive expiry times that
// agree with issued tokens.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) AccessExpiry() time.Duration {
	return s.config.AccessExpiry
}

func (s *Service) RefreshExpiry() time.Duration {
	return s.config.RefreshExpiry
}

// RotationGrace is how long a just-superseded refresh token is answered
// with a conflict rather than treated as reuse.
func (s *Service) RotationGrace() time.Duration {
	return s.config.RotationGrace
}

func (s *Service) IssueAccessToken(userID uint) (string, error) {
	return s.issue(userID, AccessToken)
}

func (s *Service) IssueRefreshToken(userID uint) (string, error) {
	return s.issue(userID, RefreshToken)
}

func (s *Service) VerifyAccessToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, AccessToken)
}

func (s *Service) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, RefreshToken)
}

func (s *Service) secretFor(tokenType TokenType) []byte {
	if tokenType == RefreshToken {
		return []byte(s.config.RefreshSecret)
	}
	return []byte(s.config.AccessSecret)
}

func (s *Service) expiryFor(tokenType TokenType) time.Duration {
	if tokenType == RefreshToken {
		return s.config.RefreshExpiry
	}
	return s.config.AccessExpiry
}

func (s *Service) issue(userID uint, tokenType TokenType) (string, error) {
	now := s.now()
	jti := uuid.New().String()
	claims := Claims{
		UserID:    userID,
		TokenType: tokenType,
		JTI:       jti,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.Issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiryFor(tokenType))),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretFor(tokenType))
	if err != nil {
		s.logger.Error("failed to sign JWT token", zap.String("token_type", string(tokenType)), zap.Error(err))
		return "", fmt.Errorf("failed to generate %s token: %w", tokenType, err)
	}

	return tokenString, nil
}

func (s *Service) verify(tokenString string, expected TokenType) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if s.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
		}
		return s.secretFor(expected), nil
	}, parserOpts...)

	if err != nil {
		s.logger.Debug("JWT token validation failed",
			zap.String("token_type", string(expected)),
			zap.Error(err))

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != expected {
		s.logger.Warn("JWT token presented with wrong type",
			zap.String("expected", string(expected)),
			zap.String("actual", string(claims.TokenType)))
		return nil, ErrInvalidToken
	}

	if claims.UserID == 0 || claims.Subject != strconv.FormatUint(uint64(claims.UserID), 10) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
