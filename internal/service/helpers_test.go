package service

import (
	"testing"
	"time"

	"chirp/internal/repository"
	"chirp/internal/testutil"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testStack struct {
	db         *gorm.DB
	tokens     *TokenService
	auth       *AuthService
	engagement *EngagementService
}

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Secret:     []byte("test-secret-key-that-is-long-enough-123"),
		Issuer:     "chirp-api",
		Audience:   "chirp-client",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}
}

// newTestStack wires the real repositories over a private SQLite database.
func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)
	engagements := repository.NewEngagementRepository(db)
	tokens := NewTokenService(testTokenConfig(), repository.NewRefreshTokenRepository(db))

	return &testStack{
		db:     db,
		tokens: tokens,
		auth: NewAuthService(users, tokens, NewBcryptHasher(bcrypt.MinCost), ProfileDefaults{
			AvatarPath: "uploads/avatar.jpg",
			BannerPath: "uploads/banner.jpg",
		}),
		engagement: NewEngagementService(users, posts, engagements),
	}
}
