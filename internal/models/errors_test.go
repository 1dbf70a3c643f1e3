package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate", NewDuplicateIdentityError("taken"), http.StatusConflict},
		{"unauthenticated", NewUnauthenticatedError(), http.StatusUnauthorized},
		{"invalid token", NewInvalidTokenError(), http.StatusUnauthorized},
		{"not found", NewNotFoundError("Post", 1), http.StatusNotFound},
		{"user not found", NewUserNotFoundError("ghost"), http.StatusNotFound},
		{"unavailable", NewUnavailableError(errors.New("boom")), http.StatusServiceUnavailable},
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"forbidden", NewForbiddenError("nope"), http.StatusForbidden},
		{"wrapped app error", fmt.Errorf("toggle: %w", NewNotFoundError("Post", 2)), http.StatusNotFound},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"plain error", errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("rotate: %w", NewInvalidTokenError())
	assert.True(t, IsCode(err, CodeInvalidToken))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(errors.New("plain"), CodeInvalidToken))
	assert.False(t, IsCode(nil, CodeInvalidToken))
}

func TestRespondWithError_HidesCause(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("pq: password authentication failed")))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password authentication")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, CodeInternal, body.Code)
	assert.False(t, body.Retryable)
}

func TestEngagementKind(t *testing.T) {
	assert.Equal(t, "likes", EngagementLike.Table())
	assert.Equal(t, "like_count", EngagementLike.CounterColumn())
	assert.Equal(t, "retweet_count", EngagementRetweet.CounterColumn())
	assert.Empty(t, EngagementBookmark.CounterColumn())
	assert.Equal(t, StateLiked, EngagementLike.StateFor(true))
	assert.Equal(t, StateUnbookmarked, EngagementBookmark.StateFor(false))
	assert.False(t, EngagementKind("poke").Valid())
}
