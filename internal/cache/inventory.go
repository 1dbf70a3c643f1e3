package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix = "user:%s"
	UsernamesKey  = "users:usernames"
)

const (
	UserTTL      = 5 * time.Minute
	UsernamesTTL = 10 * time.Minute
)

// UserKey is the cache key for the profile of username.
func UserKey(username string) string {
	return fmt.Sprintf(UserKeyPrefix, username)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateUser drops the cached profile of username and the username list.
func InvalidateUser(ctx context.Context, username string) {
	Invalidate(ctx, UserKey(username), UsernamesKey)
}
