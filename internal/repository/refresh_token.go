package repository

import (
	"context"
	"errors"
	"time"

	"chirp/internal/models"
	"chirp/internal/observability"

	"gorm.io/gorm"
)

// RefreshTokenRepository persists refresh token hashes.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	DeleteByHash(ctx context.Context, hash string) (int64, error)
	Rotate(ctx context.Context, oldHash string, next *models.RefreshToken) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	defer observability.TrackQuery("insert", "refresh_tokens")()
	return dbError(r.db.WithContext(ctx).Create(token).Error)
}

// FindByHash returns the record for hash, or nil when none exists.
func (r *refreshTokenRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	defer observability.TrackQuery("select", "refresh_tokens")()

	var token models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(err)
	}
	return &token, nil
}

// DeleteByHash removes the record for hash and reports how many rows went.
func (r *refreshTokenRepository) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	defer observability.TrackQuery("delete", "refresh_tokens")()

	res := r.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, dbError(res.Error)
	}
	return res.RowsAffected, nil
}

// Rotate consumes oldHash and stores next in one transaction. The row count
// of the DELETE is the single-use guard: when another request already
// consumed oldHash nothing is deleted and INVALID_TOKEN is returned.
func (r *refreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *models.RefreshToken) error {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "Rotate", "refresh_tokens")
	defer span.End()
	defer observability.TrackQuery("rotate", "refresh_tokens")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("token_hash = ?", oldHash).Delete(&models.RefreshToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewInvalidTokenError()
		}
		return tx.Create(next).Error
	})
	return dbError(err)
}

// DeleteExpired purges every record whose expiry is at or before now.
func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer observability.TrackQuery("delete_expired", "refresh_tokens")()

	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, dbError(res.Error)
	}
	return res.RowsAffected, nil
}
