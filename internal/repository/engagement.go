package repository

import (
	"context"
	"errors"

	"chirp/internal/models"
	"chirp/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementRepository stores the like, retweet and bookmark relations and
// keeps the denormalized post counters in step with them.
type EngagementRepository interface {
	Toggle(ctx context.Context, kind models.EngagementKind, userID, postID uint) (*models.ToggleResult, error)
	Exists(ctx context.Context, kind models.EngagementKind, userID, postID uint) (bool, error)
	Count(ctx context.Context, kind models.EngagementKind, postID uint) (int64, error)
}

type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository creates a new engagement repository
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

// Toggle flips the (userID, postID) relation of kind in one transaction. The
// post row is locked first so concurrent toggles on the same post serialize,
// and the counter moves by the database expression, never by a value read
// into Go.
func (r *engagementRepository) Toggle(ctx context.Context, kind models.EngagementKind, userID, postID uint) (*models.ToggleResult, error) {
	if !kind.Valid() {
		return nil, models.NewValidationError("unknown engagement kind")
	}

	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "Toggle", kind.Table())
	defer span.End()
	defer observability.TrackQuery("toggle", kind.Table())()

	result := &models.ToggleResult{PostID: postID, Kind: kind}
	counter := kind.CounterColumn()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", postID)
			}
			return err
		}

		removed := tx.Table(kind.Table()).
			Where("user_id = ? AND post_id = ?", userID, postID).
			Delete(&models.Engagement{})
		if removed.Error != nil {
			return removed.Error
		}

		if removed.RowsAffected > 0 {
			result.Active = false
			if counter != "" {
				if err := tx.Model(&models.Post{}).
					Where("id = ? AND "+counter+" > 0", postID).
					UpdateColumn(counter, gorm.Expr(counter+" - ?", 1)).Error; err != nil {
					return err
				}
			}
		} else {
			result.Active = true
			if err := tx.Table(kind.Table()).
				Create(&models.Engagement{UserID: userID, PostID: postID}).Error; err != nil {
				return err
			}
			if counter != "" {
				if err := tx.Model(&models.Post{}).
					Where("id = ?", postID).
					UpdateColumn(counter, gorm.Expr(counter+" + ?", 1)).Error; err != nil {
					return err
				}
			}
		}

		if counter == "" {
			return nil
		}
		return tx.Model(&models.Post{}).
			Select(counter).
			Where("id = ?", postID).
			Row().
			Scan(&result.Count)
	})
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, dbError(err)
	}

	result.State = kind.StateFor(result.Active)
	return result, nil
}

func (r *engagementRepository) Exists(ctx context.Context, kind models.EngagementKind, userID, postID uint) (bool, error) {
	if !kind.Valid() {
		return false, models.NewValidationError("unknown engagement kind")
	}
	defer observability.TrackQuery("exists", kind.Table())()

	var count int64
	if err := r.db.WithContext(ctx).
		Table(kind.Table()).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, dbError(err)
	}
	return count > 0, nil
}

// Count returns the number of live kind rows for postID.
func (r *engagementRepository) Count(ctx context.Context, kind models.EngagementKind, postID uint) (int64, error) {
	if !kind.Valid() {
		return 0, models.NewValidationError("unknown engagement kind")
	}
	defer observability.TrackQuery("count", kind.Table())()

	var count int64
	if err := r.db.WithContext(ctx).
		Table(kind.Table()).
		Where("post_id = ?", postID).
		Count(&count).Error; err != nil {
		return 0, dbError(err)
	}
	return count, nil
}
