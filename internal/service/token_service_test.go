package service

import (
	"context"
	"testing"
	"time"

	"chirp/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_AccessTokenRoundTrip(t *testing.T) {
	s := newTestStack(t).tokens

	token, expiresAt, err := s.IssueAccessToken("alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	subject, err := s.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestTokenService_ValidateAccessToken_Rejections(t *testing.T) {
	s := newTestStack(t).tokens
	cfg := testTokenConfig()
	now := time.Now()

	sign := func(method jwt.SigningMethod, key []byte, claims jwt.RegisteredClaims) string {
		tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return tok
	}
	valid := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Second))
	noSubject := valid()
	noSubject.Subject = ""
	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	wrongAudience := valid()
	wrongAudience.Audience = jwt.ClaimStrings{"someone-else"}

	good := sign(jwt.SigningMethodHS256, cfg.Secret, valid())

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: sign(jwt.SigningMethodHS256, cfg.Secret, expired)},
		{name: "wrong key", token: sign(jwt.SigningMethodHS256, []byte("another-secret-key-of-decent-length"), valid())},
		{name: "wrong algorithm", token: sign(jwt.SigningMethodHS512, cfg.Secret, valid())},
		{name: "missing subject", token: sign(jwt.SigningMethodHS256, cfg.Secret, noSubject)},
		{name: "missing expiry", token: sign(jwt.SigningMethodHS256, cfg.Secret, noExpiry)},
		{name: "wrong audience", token: sign(jwt.SigningMethodHS256, cfg.Secret, wrongAudience)},
		{name: "tampered", token: good[:len(good)-2] + "xx"},
		{name: "malformed", token: "not.a.jwt"},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := s.ValidateAccessToken(tt.token)
			assert.Empty(t, subject)
			assert.True(t, models.IsCode(err, models.CodeInvalidToken), "got %v", err)
		})
	}
}

func TestTokenService_ExpiredAccessTokenAlwaysFails(t *testing.T) {
	s := newTestStack(t).tokens
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := s.IssueAccessToken("alice")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ValidateAccessToken(token)
	assert.True(t, models.IsCode(err, models.CodeInvalidToken))
}

func TestTokenService_RefreshRotation(t *testing.T) {
	s := newTestStack(t).tokens
	ctx := context.Background()

	issued, err := s.IssueRefreshToken(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, issued.Token, 43, "32 bytes base64url without padding")

	row, err := s.ValidateRefreshToken(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", row.Username)
	assert.NotEqual(t, issued.Token, row.TokenHash)

	rotated, err := s.RotateRefreshToken(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", rotated.Username)
	assert.NotEqual(t, issued.Token, rotated.Token)

	_, err = s.ValidateRefreshToken(ctx, issued.Token)
	assert.True(t, models.IsCode(err, models.CodeInvalidToken))

	_, err = s.RotateRefreshToken(ctx, issued.Token)
	assert.True(t, models.IsCode(err, models.CodeInvalidToken))

	_, err = s.ValidateRefreshToken(ctx, rotated.Token)
	assert.NoError(t, err)
}

func TestTokenService_ExpiredRefreshTokenIsDeleted(t *testing.T) {
	stack := newTestStack(t)
	s := stack.tokens
	ctx := context.Background()

	s.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	issued, err := s.IssueRefreshToken(ctx, "alice")
	require.NoError(t, err)
	s.now = time.Now

	_, err = s.ValidateRefreshToken(ctx, issued.Token)
	assert.True(t, models.IsCode(err, models.CodeInvalidToken))

	var remaining int64
	require.NoError(t, stack.db.Model(&models.RefreshToken{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestTokenService_RevokeIsIdempotent(t *testing.T) {
	s := newTestStack(t).tokens
	ctx := context.Background()

	issued, err := s.IssueRefreshToken(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, s.RevokeRefreshToken(ctx, issued.Token))
	require.NoError(t, s.RevokeRefreshToken(ctx, issued.Token))
	require.NoError(t, s.RevokeRefreshToken(ctx, "never-issued"))

	_, err = s.ValidateRefreshToken(ctx, issued.Token)
	assert.True(t, models.IsCode(err, models.CodeInvalidToken))
}
