package cache

import "fmt"

const feedGenerationKey = "feed:published:gen"

// SessionKey holds the refresh token currently valid for a user.
func SessionKey(userID string) string {
	return "session:refresh:" + userID
}

// FeedGenerationKey is bumped whenever the set of published videos changes;
// page keys embed it so stale pages are never read again and simply expire.
func FeedGenerationKey() string {
	return feedGenerationKey
}

func FeedPageKey(generation, page, limit int64, sort int) string {
	return fmt.Sprintf("feed:published:v%d:%d:%d:%d", generation, page, limit, sort)
}
