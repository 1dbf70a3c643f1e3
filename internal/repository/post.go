package repository

import (
	"context"
	"errors"

	"chirp/internal/models"
	"chirp/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	CreateReply(ctx context.Context, reply *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetCounters(ctx context.Context, id uint) (*models.Post, error)
	Delete(ctx context.Context, id uint) error
	ListOriginals(ctx context.Context, page Page) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, userID uint, kind models.PostKind, page Page) ([]*models.Post, error)
	ListReplies(ctx context.Context, parentID uint, page Page) ([]*models.Post, error)
	ListEngagedBy(ctx context.Context, kind models.EngagementKind, userID uint, page Page) ([]*models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts a root post.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("insert", "posts")()

	post.Kind = models.PostKindOriginal
	post.ParentID = nil
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return dbError(err)
	}
	return nil
}

// CreateReply inserts reply and bumps the parent's reply_count by exactly one
// in the same transaction.
func (r *postRepository) CreateReply(ctx context.Context, reply *models.Post) error {
	if reply.ParentID == nil {
		return models.NewValidationError("reply requires a parent post")
	}
	parentID := *reply.ParentID
	reply.Kind = models.PostKindReply

	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "CreateReply", "posts")
	defer span.End()
	defer observability.TrackQuery("insert_reply", "posts")()

	err := transactWithRetry(ctx, r.db, "create_reply", func(tx *gorm.DB) error {
		var parent models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&parent, parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", parentID)
			}
			return err
		}

		reply.ID = 0
		if err := tx.Omit(clause.Associations).Create(reply).Error; err != nil {
			return err
		}

		return tx.Model(&models.Post{}).
			Where("id = ?", parentID).
			UpdateColumn("reply_count", gorm.Expr("reply_count + ?", 1)).Error
	})
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
	}
	return err
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("select", "posts")()

	var post models.Post
	if err := r.db.WithContext(ctx).Preload("User").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, dbError(err)
	}
	return &post, nil
}

// GetCounters loads only the ownership, threading and counter columns of id,
// without the author join or the text.
func (r *postRepository) GetCounters(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("select_counters", "posts")()

	var post models.Post
	if err := r.db.WithContext(ctx).
		Select("id", "user_id", "kind", "parent_id", "reply_count", "retweet_count", "like_count").
		First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, dbError(err)
	}
	return &post, nil
}

// Delete removes the post, its reply subtree and every engagement row that
// points into it. If the post was a reply its parent's reply_count drops by one.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "Delete", "posts")
	defer span.End()
	defer observability.TrackQuery("delete", "posts")()

	return transactWithRetry(ctx, r.db, "delete_post", func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return err
		}

		ids, err := collectThread(tx, id)
		if err != nil {
			return err
		}

		for _, kind := range models.EngagementKinds {
			if err := tx.Table(kind.Table()).
				Where("post_id IN ?", ids).
				Delete(&models.Engagement{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("id IN ?", ids).Delete(&models.Post{}).Error; err != nil {
			return err
		}

		if post.Kind == models.PostKindReply && post.ParentID != nil {
			return tx.Model(&models.Post{}).
				Where("id = ? AND reply_count > 0", *post.ParentID).
				UpdateColumn("reply_count", gorm.Expr("reply_count - ?", 1)).Error
		}
		return nil
	})
}

// collectThread returns rootID plus the ids of every reply beneath it.
func collectThread(tx *gorm.DB, rootID uint) ([]uint, error) {
	ids := []uint{rootID}
	frontier := []uint{rootID}
	for len(frontier) > 0 {
		var children []uint
		if err := tx.Model(&models.Post{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		ids = append(ids, children...)
		frontier = children
	}
	return ids, nil
}

func (r *postRepository) ListOriginals(ctx context.Context, page Page) ([]*models.Post, error) {
	defer observability.TrackQuery("list_originals", "posts")()

	var posts []*models.Post
	err := page.apply(r.db.WithContext(ctx).
		Preload("User").
		Where("kind = ?", models.PostKindOriginal).
		Order("created_at DESC").
		Order("id DESC")).
		Find(&posts).Error
	return posts, dbError(err)
}

func (r *postRepository) ListByAuthor(ctx context.Context, userID uint, kind models.PostKind, page Page) ([]*models.Post, error) {
	defer observability.TrackQuery("list_by_author", "posts")()

	var posts []*models.Post
	err := page.apply(r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ? AND kind = ?", userID, kind).
		Order("created_at DESC").
		Order("id DESC")).
		Find(&posts).Error
	return posts, dbError(err)
}

func (r *postRepository) ListReplies(ctx context.Context, parentID uint, page Page) ([]*models.Post, error) {
	defer observability.TrackQuery("list_replies", "posts")()

	var posts []*models.Post
	err := page.apply(r.db.WithContext(ctx).
		Preload("User").
		Where("parent_id = ? AND kind = ?", parentID, models.PostKindReply).
		Order("created_at ASC").
		Order("id ASC")).
		Find(&posts).Error
	return posts, dbError(err)
}

// ListEngagedBy returns the posts userID holds a kind relation with, most
// recent engagement first.
func (r *postRepository) ListEngagedBy(ctx context.Context, kind models.EngagementKind, userID uint, page Page) ([]*models.Post, error) {
	if !kind.Valid() {
		return nil, models.NewValidationError("unknown engagement kind")
	}
	defer observability.TrackQuery("list_engaged", kind.Table())()

	var posts []*models.Post
	err := page.apply(r.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("posts.*").
		Joins("JOIN "+kind.Table()+" e ON e.post_id = posts.id").
		Where("e.user_id = ?", userID).
		Preload("User").
		Order("e.created_at DESC").
		Order("e.id DESC")).
		Find(&posts).Error
	return posts, dbError(err)
}
