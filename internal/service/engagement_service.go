package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"chirp/internal/middleware"
	"chirp/internal/models"
	"chirp/internal/observability"
	"chirp/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const maxPostTextLen = 280

type CreatePostInput struct {
	Text     string
	Kind     models.PostKind
	ParentID *uint
}

// EngagementService owns posts, replies and the like/retweet/bookmark
// toggles. The acting user is always passed in explicitly.
type EngagementService struct {
	users       repository.UserRepository
	posts       repository.PostRepository
	engagements repository.EngagementRepository
	locks       *keyedMutex
}

func NewEngagementService(
	users repository.UserRepository,
	posts repository.PostRepository,
	engagements repository.EngagementRepository,
) *EngagementService {
	return &EngagementService{
		users:       users,
		posts:       posts,
		engagements: engagements,
		locks:       newKeyedMutex(),
	}
}

func (s *EngagementService) CreatePost(ctx context.Context, actor *models.User, in CreatePostInput) (*models.PostResponse, error) {
	if actor == nil {
		return nil, models.NewUnauthenticatedError()
	}
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "EngagementService", "CreatePost")
	defer span.End()

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, models.NewValidationError("Text is required")
	}
	if utf8.RuneCountInString(text) > maxPostTextLen {
		return nil, models.NewValidationError(fmt.Sprintf("Text too long (max %d characters)", maxPostTextLen))
	}

	kind := in.Kind
	if kind == "" {
		kind = models.PostKindOriginal
		if in.ParentID != nil {
			kind = models.PostKindReply
		}
	}
	if !kind.Valid() {
		return nil, models.NewValidationError("Invalid kind")
	}

	post := &models.Post{UserID: actor.ID, Text: text}
	switch kind {
	case models.PostKindReply:
		if in.ParentID == nil {
			return nil, models.NewValidationError("parent_id is required for replies")
		}
		post.ParentID = in.ParentID
		if err := s.posts.CreateReply(ctx, post); err != nil {
			return nil, err
		}
	default:
		if in.ParentID != nil {
			return nil, models.NewValidationError("parent_id is only allowed on replies")
		}
		if err := s.posts.Create(ctx, post); err != nil {
			return nil, err
		}
	}

	post.User = *actor
	resp := models.NewPostResponse(post)
	return &resp, nil
}

// DeletePost removes postID and its thread. Only the author may delete.
func (s *EngagementService) DeletePost(ctx context.Context, actor *models.User, postID uint) error {
	if actor == nil {
		return models.NewUnauthenticatedError()
	}
	post, err := s.posts.GetCounters(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != actor.ID {
		return models.NewForbiddenError("only the author can delete this post")
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "post deleted", slog.Uint64("post_id", uint64(postID)))
	return nil
}

func (s *EngagementService) ToggleLike(ctx context.Context, actor *models.User, postID uint) (*models.ToggleResult, error) {
	return s.toggle(ctx, models.EngagementLike, actor, postID)
}

func (s *EngagementService) ToggleRetweet(ctx context.Context, actor *models.User, postID uint) (*models.ToggleResult, error) {
	return s.toggle(ctx, models.EngagementRetweet, actor, postID)
}

func (s *EngagementService) ToggleBookmark(ctx context.Context, actor *models.User, postID uint) (*models.ToggleResult, error) {
	return s.toggle(ctx, models.EngagementBookmark, actor, postID)
}

// toggle flips one (actor, post) relation. Toggles on the same key are
// serialized in-process; the transaction in the repository covers other
// processes.
func (s *EngagementService) toggle(ctx context.Context, kind models.EngagementKind, actor *models.User, postID uint) (*models.ToggleResult, error) {
	if actor == nil {
		return nil, models.NewUnauthenticatedError()
	}
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "EngagementService", "Toggle")
	defer span.End()
	span.SetAttributes(
		attribute.String("engagement.kind", string(kind)),
		attribute.Int64("post.id", int64(postID)),
	)

	unlock := s.locks.Lock(fmt.Sprintf("%s:%d:%d", kind, actor.ID, postID))
	defer unlock()

	result, err := s.engagements.Toggle(ctx, kind, actor.ID, postID)
	if err != nil {
		return nil, err
	}

	observability.EngagementToggles.WithLabelValues(string(kind), string(result.State)).Inc()
	middleware.Logger.DebugContext(ctx, "engagement toggled",
		slog.String("kind", string(kind)),
		slog.Uint64("post_id", uint64(postID)),
		slog.String("state", string(result.State)))
	span.SetAttributes(attribute.String("engagement.state", string(result.State)))
	return result, nil
}

func (s *EngagementService) IsLiked(ctx context.Context, actor *models.User, postID uint) (bool, error) {
	return s.isEngaged(ctx, models.EngagementLike, actor, postID)
}

func (s *EngagementService) IsRetweeted(ctx context.Context, actor *models.User, postID uint) (bool, error) {
	return s.isEngaged(ctx, models.EngagementRetweet, actor, postID)
}

func (s *EngagementService) IsBookmarked(ctx context.Context, actor *models.User, postID uint) (bool, error) {
	return s.isEngaged(ctx, models.EngagementBookmark, actor, postID)
}

func (s *EngagementService) isEngaged(ctx context.Context, kind models.EngagementKind, actor *models.User, postID uint) (bool, error) {
	if actor == nil {
		return false, models.NewUnauthenticatedError()
	}
	if _, err := s.posts.GetCounters(ctx, postID); err != nil {
		return false, err
	}
	return s.engagements.Exists(ctx, kind, actor.ID, postID)
}

// LikeCounter returns the denormalized like count of postID.
func (s *EngagementService) LikeCounter(ctx context.Context, postID uint) (int64, error) {
	post, err := s.posts.GetCounters(ctx, postID)
	if err != nil {
		return 0, err
	}
	return post.LikeCount, nil
}

func (s *EngagementService) GetAllPosts(ctx context.Context, page repository.Page) ([]models.PostResponse, error) {
	posts, err := s.posts.ListOriginals(ctx, page)
	if err != nil {
		return nil, err
	}
	return models.NewPostResponses(posts), nil
}

func (s *EngagementService) GetPostByID(ctx context.Context, postID uint) (*models.PostResponse, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	resp := models.NewPostResponse(post)
	return &resp, nil
}

func (s *EngagementService) GetRepliesForPost(ctx context.Context, postID uint, page repository.Page) ([]models.PostResponse, error) {
	if _, err := s.posts.GetCounters(ctx, postID); err != nil {
		return nil, err
	}
	posts, err := s.posts.ListReplies(ctx, postID, page)
	if err != nil {
		return nil, err
	}
	return models.NewPostResponses(posts), nil
}

func (s *EngagementService) GetPostsByUsername(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error) {
	return s.listByAuthor(ctx, username, models.PostKindOriginal, page)
}

func (s *EngagementService) GetRepliesByUsername(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error) {
	return s.listByAuthor(ctx, username, models.PostKindReply, page)
}

func (s *EngagementService) GetRetweetsByUsername(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error) {
	return s.listEngaged(ctx, models.EngagementRetweet, username, page)
}

func (s *EngagementService) GetLikedByUsername(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error) {
	return s.listEngaged(ctx, models.EngagementLike, username, page)
}

func (s *EngagementService) GetBookmarksByUsername(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error) {
	return s.listEngaged(ctx, models.EngagementBookmark, username, page)
}

func (s *EngagementService) listByAuthor(ctx context.Context, username string, kind models.PostKind, page repository.Page) ([]models.PostResponse, error) {
	user, err := s.users.GetProfile(ctx, username)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByAuthor(ctx, user.ID, kind, page)
	if err != nil {
		return nil, err
	}
	return models.NewPostResponses(posts), nil
}

func (s *EngagementService) listEngaged(ctx context.Context, kind models.EngagementKind, username string, page repository.Page) ([]models.PostResponse, error) {
	user, err := s.users.GetProfile(ctx, username)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListEngagedBy(ctx, kind, user.ID, page)
	if err != nil {
		return nil, err
	}
	return models.NewPostResponses(posts), nil
}
