package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"carwash/internal/config"
	"carwash/internal/database"
	"carwash/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const tokenIssuer = "carwash"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthService signs admins in and issues HS256 session tokens.
type AuthService struct {
	admins   domain.AdminStore
	defaults config.AdminConfig
	secret   []byte
	ttl      time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

var _ domain.AuthService = (*AuthService)(nil)

// NewAuthService uses the configured JWT secret, or a random per-process
// secret when none is set (tokens then die with the process).
func NewAuthService(admins domain.AdminStore, defaults config.AdminConfig, auth config.APIAuthConfig, logger *zerolog.Logger) (*AuthService, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	secret := []byte(auth.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		logger.Warn().Msg("jwt secret not configured, using an ephemeral one")
	}

	ttl := auth.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &AuthService{
		admins:   admins,
		defaults: defaults,
		secret:   secret,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// AdminLogin checks the credentials and returns a signed token. While the
// store is unavailable only the configured default account can sign in.
func (s *AuthService) AdminLogin(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	ok, err := s.admins.VerifyAdmin(ctx, username, password)
	if err != nil {
		if !errors.Is(err, database.ErrUnavailable) {
			return "", err
		}
		s.logger.Warn().Err(err).Msg("admin store unavailable, checking default credentials")
		ok = s.matchesDefault(username, password)
	}
	if !ok {
		s.logger.Warn().Str("username", username).Msg("admin login rejected")
		return "", ErrInvalidCredentials
	}

	token, err := s.issue(username)
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("username", username).Msg("admin logged in")
	return token, nil
}

func (s *AuthService) matchesDefault(username, password string) bool {
	if s.defaults.DefaultUsername == "" || s.defaults.DefaultPassword == "" {
		return false
	}
	u := subtle.ConstantTimeCompare([]byte(username), []byte(s.defaults.DefaultUsername))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(s.defaults.DefaultPassword))
	return u&p == 1
}

func (s *AuthService) issue(username string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken returns the admin username the token was issued to.
func (s *AuthService) ValidateToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
