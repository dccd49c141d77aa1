package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PopularTagsKey       = "tags:popular"
	FeedSessionKeyPrefix = "feed:session:%d:%s"
	UnreadCountKeyPrefix = "chat:unread:%d"
)

const (
	PopularTagsTTL = 5 * time.Minute
	FeedSessionTTL = 30 * time.Minute
	UnreadCountTTL = 30 * time.Second
)

func FeedSessionKey(viewerID uint, sessionID string) string {
	return fmt.Sprintf(FeedSessionKeyPrefix, viewerID, sessionID)
}

func UnreadCountKey(userID uint) string {
	return fmt.Sprintf(UnreadCountKeyPrefix, userID)
}

// Invalidate deletes key, ignoring a nil client.
func Invalidate(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb == nil || len(keys) == 0 {
		return
	}
	rdb.Del(ctx, keys...)
}

// InvalidateUnread drops the cached unread counters of the given users.
func InvalidateUnread(ctx context.Context, rdb *redis.Client, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, UnreadCountKey(id))
	}
	Invalidate(ctx, rdb, keys...)
}
