package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bgm-radar/internal/domain"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

// Issuer is stamped on every operator token.
const Issuer = "bgm-radar"

type claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and validates HS256 operator tokens.
type Service struct {
	secret []byte
	now    func() time.Time
	logger *logger.Logger
}

// NewService creates a new auth service
func NewService(secret string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{secret: []byte(secret), now: time.Now, logger: log}
}

// Enabled reports whether a signing secret is configured
func (s *Service) Enabled() bool {
	return len(s.secret) > 0
}

// IssueToken signs a token for subject valid for ttl
func (s *Service) IssueToken(subject, scope string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", errors.NewConfigurationError("API_JWT_SECRET is not set", nil)
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.NewValidationError("Token subject is required", nil)
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.NewInternalError("Failed to sign token", err)
	}
	return signed, nil
}

// ValidateJWTToken validates a bearer token and returns its claims
func (s *Service) ValidateJWTToken(_ context.Context, tokenString string) (*domain.AuthClaims, error) {
	if !s.Enabled() {
		return nil, errors.NewConfigurationError("API_JWT_SECRET is not set", nil)
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		s.logger.WithError(err).Debug("Token rejected")
		return nil, errors.NewAuthenticationError("Invalid or expired token")
	}

	out := &domain.AuthClaims{Subject: c.Subject, Scope: c.Scope}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
