// Package middleware provides authentication, logging, metrics and tracing middleware for the application.
package middleware

import (
	"context"
	"strings"

	"chirp/internal/models"

	"github.com/gofiber/fiber/v2"
)

// userLocalsKey is the Fiber locals key holding the resolved *models.User.
const userLocalsKey = "user"

// IdentityResolver turns a bearer access token into the acting user.
type IdentityResolver interface {
	ResolveCurrentUser(ctx context.Context, accessToken string) (*models.User, error)
}

// AuthRequired is a middleware that enforces authentication for protected routes.
// The identity is resolved once here and handed to handlers through CurrentUser;
// nothing below the HTTP boundary reads it from ambient state.
func AuthRequired(resolver IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := BearerToken(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewInvalidTokenError())
		}

		user, err := resolver.ResolveCurrentUser(c.UserContext(), token)
		if err != nil {
			return models.RespondWithError(c, models.StatusFor(err), err)
		}

		c.Locals(userLocalsKey, user)
		ctx := context.WithValue(c.UserContext(), UserIDKey, user.ID)
		ctx = context.WithValue(ctx, UsernameKey, user.Username)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// CurrentUser returns the user resolved by AuthRequired for this request.
func CurrentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(userLocalsKey).(*models.User)
	return user, ok && user != nil
}
