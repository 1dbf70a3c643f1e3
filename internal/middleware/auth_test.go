package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chirp/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverStub struct {
	resolveFn func(ctx context.Context, token string) (*models.User, error)
}

func (r resolverStub) ResolveCurrentUser(ctx context.Context, token string) (*models.User, error) {
	return r.resolveFn(ctx, token)
}

func TestAuthRequired(t *testing.T) {
	resolver := resolverStub{resolveFn: func(_ context.Context, token string) (*models.User, error) {
		switch token {
		case "good":
			return &models.User{ID: 123, Username: "alice"}, nil
		case "orphan":
			return nil, models.NewUserNotFoundError("bob")
		default:
			return nil, models.NewInvalidTokenError()
		}
	}}

	app := fiber.New()
	app.Get("/test", AuthRequired(resolver), func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		name, _ := c.UserContext().Value(UsernameKey).(string)
		return c.JSON(fiber.Map{"userID": user.ID, "ctxUsername": name})
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedCode   string
	}{
		{name: "Happy Path", authHeader: "Bearer good", expectedStatus: http.StatusOK},
		{name: "Lowercase scheme", authHeader: "bearer good", expectedStatus: http.StatusOK},
		{name: "Missing Header", expectedStatus: http.StatusUnauthorized, expectedCode: models.CodeInvalidToken},
		{name: "Invalid Format", authHeader: "Basic dXNlcjpwYXNz", expectedStatus: http.StatusUnauthorized, expectedCode: models.CodeInvalidToken},
		{name: "Empty Token", authHeader: "Bearer   ", expectedStatus: http.StatusUnauthorized, expectedCode: models.CodeInvalidToken},
		{name: "Rejected Token", authHeader: "Bearer forged", expectedStatus: http.StatusUnauthorized, expectedCode: models.CodeInvalidToken},
		{name: "Subject Gone", authHeader: "Bearer orphan", expectedStatus: http.StatusNotFound, expectedCode: models.CodeUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, float64(123), body["userID"])
				assert.Equal(t, "alice", body["ctxUsername"])
			} else {
				assert.Equal(t, tt.expectedCode, body["code"])
			}
		})
	}
}

func TestTimeout_SetsDeadline(t *testing.T) {
	app := fiber.New()
	app.Get("/", Timeout(time.Second), func(c *fiber.Ctx) error {
		_, ok := c.UserContext().Deadline()
		return c.JSON(fiber.Map{"deadline": ok})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["deadline"])
}

func TestContextMiddleware_PropagatesRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "rid-42")
		return c.Next()
	})
	app.Use(ContextMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		rid, _ := c.UserContext().Value(RequestIDKey).(string)
		return c.SendString(rid)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "rid-42", string(raw))
}
