package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chirp/internal/config"
	"chirp/internal/middleware"
	"chirp/internal/models"
	"chirp/internal/observability"
	"chirp/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const refreshTokenBytes = 32

// TokenConfig holds the signing key and lifetimes. The key is loaded once at
// startup and never changes for the life of the process.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenConfigFrom extracts the token settings from cfg.
func TokenConfigFrom(cfg *config.Config) TokenConfig {
	return TokenConfig{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}
}

// RefreshTokenRecord is a freshly issued refresh token. Token is the raw
// opaque value and is never persisted.
type RefreshTokenRecord struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// TokenService issues and validates access tokens (stateless JWT) and
// refresh tokens (opaque, persisted by hash).
type TokenService struct {
	cfg    TokenConfig
	tokens repository.RefreshTokenRepository
	parser *jwt.Parser
	now    func() time.Time
}

func NewTokenService(cfg TokenConfig, tokens repository.RefreshTokenRepository) *TokenService {
	s := &TokenService{cfg: cfg, tokens: tokens, now: time.Now}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	s.parser = jwt.NewParser(opts...)
	return s
}

// IssueAccessToken signs a token for subject valid for AccessTTL.
func (s *TokenService) IssueAccessToken(subject string) (string, time.Time, error) {
	if len(s.cfg.Secret) == 0 {
		return "", time.Time{}, models.NewInternalError(errors.New("JWT secret not configured"))
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.cfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", time.Time{}, models.NewInternalError(fmt.Errorf("sign access token: %w", err))
	}
	observability.TokenEvents.WithLabelValues("access", "issued").Inc()
	return signed, expiresAt, nil
}

// ValidateAccessToken returns the subject of a valid token. Every failure
// (bad signature, wrong algorithm, expired, malformed, no subject) collapses
// into one opaque INVALID_TOKEN; the reason is only logged.
func (s *TokenService) ValidateAccessToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	})
	if err == nil && (!parsed.Valid || claims.Subject == "") {
		err = errors.New("token has no subject")
	}
	if err != nil {
		middleware.Logger.Debug("access token rejected", slog.String("reason", err.Error()))
		observability.TokenEvents.WithLabelValues("access", "rejected").Inc()
		return "", models.NewInvalidTokenError()
	}
	return claims.Subject, nil
}

// IssueRefreshToken creates and persists a refresh token bound to username.
func (s *TokenService) IssueRefreshToken(ctx context.Context, username string) (*RefreshTokenRecord, error) {
	record, row, err := s.newRefreshToken(username)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Create(ctx, row); err != nil {
		return nil, err
	}
	observability.TokenEvents.WithLabelValues("refresh", "issued").Inc()
	return record, nil
}

// ValidateRefreshToken looks token up without consuming it. An expired
// record is deleted on sight.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if token == "" {
		return nil, models.NewInvalidTokenError()
	}
	hash := hashRefreshToken(token)
	row, err := s.tokens.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if row == nil {
		observability.TokenEvents.WithLabelValues("refresh", "rejected").Inc()
		return nil, models.NewInvalidTokenError()
	}
	if row.Expired(s.now()) {
		if _, err := s.tokens.DeleteByHash(ctx, hash); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to purge expired refresh token", slog.String("error", err.Error()))
		}
		observability.TokenEvents.WithLabelValues("refresh", "expired").Inc()
		return nil, models.NewInvalidTokenError()
	}
	return row, nil
}

// RotateRefreshToken consumes old and returns its replacement, bound to the
// same username. A token can be rotated at most once.
func (s *TokenService) RotateRefreshToken(ctx context.Context, old string) (*RefreshTokenRecord, error) {
	current, err := s.ValidateRefreshToken(ctx, old)
	if err != nil {
		return nil, err
	}
	return s.rotate(ctx, current)
}

// rotate replaces current, which the caller has already validated.
func (s *TokenService) rotate(ctx context.Context, current *models.RefreshToken) (*RefreshTokenRecord, error) {
	record, row, err := s.newRefreshToken(current.Username)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Rotate(ctx, current.TokenHash, row); err != nil {
		if models.IsCode(err, models.CodeInvalidToken) {
			observability.TokenEvents.WithLabelValues("refresh", "reused").Inc()
		}
		return nil, err
	}

	observability.TokenEvents.WithLabelValues("refresh", "rotated").Inc()
	middleware.Logger.InfoContext(ctx, "refresh token rotated", slog.String("username", current.Username))
	return record, nil
}

// RevokeRefreshToken deletes token. Revoking an unknown token is not an error.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	n, err := s.tokens.DeleteByHash(ctx, hashRefreshToken(token))
	if err != nil {
		return err
	}
	if n > 0 {
		observability.TokenEvents.WithLabelValues("refresh", "revoked").Inc()
	}
	return nil
}

// PurgeExpired removes every expired refresh token.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}

func (s *TokenService) newRefreshToken(username string) (*RefreshTokenRecord, *models.RefreshToken, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, nil, models.NewInternalError(fmt.Errorf("generate refresh token: %w", err))
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	expiresAt := s.now().Add(s.cfg.RefreshTTL)

	return &RefreshTokenRecord{Token: raw, Username: username, ExpiresAt: expiresAt},
		&models.RefreshToken{TokenHash: hashRefreshToken(raw), Username: username, ExpiresAt: expiresAt},
		nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
