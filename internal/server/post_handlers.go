package server

import (
	"context"

	"chirp/internal/models"
	"chirp/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Text     string `json:"text" validate:"required,max=280"`
	Kind     string `json:"kind" validate:"omitempty,oneof=ORIGINAL REPLY"`
	ParentID *uint  `json:"parent_id" validate:"omitempty,gt=0"`
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Create an original post, or a reply when parent_id is set
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "Post"
// @Success 201 {object} models.PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.engagement.CreatePost(c.UserContext(), actor(c), service.CreatePostInput{
		Text:     req.Text,
		Kind:     models.PostKind(req.Kind),
		ParentID: req.ParentID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Delete a post and its replies. Only the author may delete.
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.engagement.DeletePost(c.UserContext(), actor(c), postID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Original posts, newest first
// @Tags posts
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.PostResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.engagement.GetAllPosts(c.UserContext(), parsePagination(c, defaultPageLimit))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.PostResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.engagement.GetPostByID(c.UserContext(), postID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// GetReplies handles GET /api/posts/:id/replies
// @Summary List replies
// @Description Direct replies of a post, oldest first
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.PostResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/replies [get]
func (s *Server) GetReplies(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	replies, err := s.engagement.GetRepliesForPost(c.UserContext(), postID, parsePagination(c, defaultPageLimit))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(replies)
}

// GetLikeCount handles GET /api/posts/:id/like-count
// @Summary Like count
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{count=int}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like-count [get]
func (s *Server) GetLikeCount(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	count, err := s.engagement.LikeCounter(c.UserContext(), postID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

type toggleFunc func(ctx context.Context, actor *models.User, postID uint) (*models.ToggleResult, error)

func (s *Server) toggle(c *fiber.Ctx, fn toggleFunc) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	result, err := fn(c.UserContext(), actor(c), postID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

// ToggleLike handles POST /api/posts/:id/like
// @Summary Like or unlike a post
// @Tags engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.ToggleResult
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	return s.toggle(c, s.engagement.ToggleLike)
}

// ToggleRetweet handles POST /api/posts/:id/retweet
// @Summary Retweet or undo a retweet
// @Tags engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.ToggleResult
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/retweet [post]
func (s *Server) ToggleRetweet(c *fiber.Ctx) error {
	return s.toggle(c, s.engagement.ToggleRetweet)
}

// ToggleBookmark handles POST /api/posts/:id/bookmark
// @Summary Bookmark or unbookmark a post
// @Tags engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.ToggleResult
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/bookmark [post]
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	return s.toggle(c, s.engagement.ToggleBookmark)
}

type existsFunc func(ctx context.Context, actor *models.User, postID uint) (bool, error)

func (s *Server) exists(c *fiber.Ctx, field string, fn existsFunc) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	ok, err := fn(c.UserContext(), actor(c), postID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{field: ok})
}

// IsLiked handles GET /api/posts/:id/liked
// @Summary Whether the current user liked a post
// @Tags engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{liked=bool}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/liked [get]
func (s *Server) IsLiked(c *fiber.Ctx) error {
	return s.exists(c, "liked", s.engagement.IsLiked)
}

// IsRetweeted handles GET /api/posts/:id/retweeted
// @Summary Whether the current user retweeted a post
// @Tags engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{retweeted=bool}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/retweeted [get]
func (s *Server) IsRetweeted(c *fiber.Ctx) error {
	return s.exists(c, "retweeted", s.engagement.IsRetweeted)
}

// IsBookmarked handles GET /api/posts/:id/bookmarked
// @Summary Whether the current user bookmarked a post
// @Tags engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{bookmarked=bool}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/bookmarked [get]
func (s *Server) IsBookmarked(c *fiber.Ctx) error {
	return s.exists(c, "bookmarked", s.engagement.IsBookmarked)
}
