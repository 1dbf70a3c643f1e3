package server

import (
	"context"
	"strings"

	"chirp/internal/models"
	"chirp/internal/repository"

	"github.com/gofiber/fiber/v2"
)

type listFunc func(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error)

func (s *Server) listForUser(c *fiber.Ctx, fn listFunc) error {
	username := strings.TrimSpace(c.Params("username"))
	if username == "" {
		return fail(c, models.NewValidationError("Invalid username"))
	}
	posts, err := fn(c.UserContext(), username, parsePagination(c, defaultPageLimit))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}

// GetUserPosts handles GET /api/users/:username/posts
// @Summary Original posts by a user
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.PostResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{username}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	return s.listForUser(c, s.engagement.GetPostsByUsername)
}

// GetUserReplies handles GET /api/users/:username/replies
// @Summary Replies written by a user
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {array} models.PostResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{username}/replies [get]
func (s *Server) GetUserReplies(c *fiber.Ctx) error {
	return s.listForUser(c, s.engagement.GetRepliesByUsername)
}

// GetUserRetweets handles GET /api/users/:username/retweets
// @Summary Posts retweeted by a user
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {array} models.PostResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{username}/retweets [get]
func (s *Server) GetUserRetweets(c *fiber.Ctx) error {
	return s.listForUser(c, s.engagement.GetRetweetsByUsername)
}

// GetUserLikes handles GET /api/users/:username/likes
// @Summary Posts liked by a user
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {array} models.PostResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{username}/likes [get]
func (s *Server) GetUserLikes(c *fiber.Ctx) error {
	return s.listForUser(c, s.engagement.GetLikedByUsername)
}

// GetUserBookmarks handles GET /api/users/:username/bookmarks
// @Summary Posts bookmarked by the current user
// @Description Bookmarks are private; only the owner may list them.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 200 {array} models.PostResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /users/{username}/bookmarks [get]
func (s *Server) GetUserBookmarks(c *fiber.Ctx) error {
	user := actor(c)
	if user == nil || user.Username != c.Params("username") {
		return fail(c, models.NewForbiddenError("bookmarks are only visible to their owner"))
	}
	return s.listForUser(c, s.engagement.GetBookmarksByUsername)
}
