package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *[]string) func() error {
		return func() error {
			calls++
			*dest = []string{"alice", "bob"}
			return nil
		}
	}

	var first []string
	require.NoError(t, Aside(ctx, UsernamesKey, &first, UsernamesTTL, fetch(&first)))
	assert.Equal(t, []string{"alice", "bob"}, first)
	assert.True(t, mr.Exists(UsernamesKey))

	var second []string
	require.NoError(t, Aside(ctx, UsernamesKey, &second, UsernamesTTL, fetch(&second)))
	assert.Equal(t, []string{"alice", "bob"}, second)
	assert.Equal(t, 1, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupMiniredis(t)

	var dest []string
	err := Aside(context.Background(), UsernamesKey, &dest, UsernamesTTL, func() error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists(UsernamesKey))
}

func TestAside_WithoutClientFallsThrough(t *testing.T) {
	SetClient(nil)

	var dest string
	err := Aside(context.Background(), UserKey("alice"), &dest, UserTTL, func() error {
		dest = "from-db"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-db", dest)
}

func TestInvalidateUser(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, UserKey("alice"), map[string]string{"username": "alice"}, UserTTL))
	require.NoError(t, SetJSON(ctx, UsernamesKey, []string{"alice"}, UsernamesTTL))

	InvalidateUser(ctx, "alice")
	assert.False(t, mr.Exists(UserKey("alice")))
	assert.False(t, mr.Exists(UsernamesKey))
}
