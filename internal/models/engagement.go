package models

import "time"

// EngagementKind names one of the (user, post) toggle relations.
type EngagementKind string

const (
	EngagementLike     EngagementKind = "like"
	EngagementRetweet  EngagementKind = "retweet"
	EngagementBookmark EngagementKind = "bookmark"
)

// EngagementKinds lists every toggle relation.
var EngagementKinds = []EngagementKind{EngagementLike, EngagementRetweet, EngagementBookmark}

// Valid reports whether k is a known engagement kind.
func (k EngagementKind) Valid() bool {
	switch k {
	case EngagementLike, EngagementRetweet, EngagementBookmark:
		return true
	}
	return false
}

// Table is the relation table backing k.
func (k EngagementKind) Table() string {
	switch k {
	case EngagementLike:
		return "likes"
	case EngagementRetweet:
		return "retweets"
	case EngagementBookmark:
		return "bookmarks"
	}
	return ""
}

// CounterColumn is the posts column driven by k. Bookmarks are private and
// drive no counter, so the empty string is returned for them.
func (k EngagementKind) CounterColumn() string {
	switch k {
	case EngagementLike:
		return "like_count"
	case EngagementRetweet:
		return "retweet_count"
	}
	return ""
}

// StateFor returns the client-facing state label for k.
func (k EngagementKind) StateFor(active bool) ToggleState {
	switch k {
	case EngagementLike:
		if active {
			return StateLiked
		}
		return StateUnliked
	case EngagementRetweet:
		if active {
			return StateRetweeted
		}
		return StateUnretweeted
	default:
		if active {
			return StateBookmarked
		}
		return StateUnbookmarked
	}
}

// ToggleState is the state a toggle left the relation in.
type ToggleState string

const (
	StateLiked        ToggleState = "LIKED"
	StateUnliked      ToggleState = "UNLIKED"
	StateRetweeted    ToggleState = "RETWEETED"
	StateUnretweeted  ToggleState = "UNRETWEETED"
	StateBookmarked   ToggleState = "BOOKMARKED"
	StateUnbookmarked ToggleState = "UNBOOKMARKED"
)

// ToggleResult is returned by every engagement toggle. Count is the value of
// the driven counter after the toggle, zero for bookmarks.
type ToggleResult struct {
	PostID uint           `json:"post_id"`
	Kind   EngagementKind `json:"kind"`
	State  ToggleState    `json:"state"`
	Active bool           `json:"active"`
	Count  int64          `json:"count"`
}

// Engagement is the shape shared by the three relation tables. It has no
// table of its own; queries select the table with EngagementKind.Table.
type Engagement struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null"`
	PostID    uint      `gorm:"not null"`
	CreatedAt time.Time
}

// Like marks a post as liked by a user.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Retweet marks a post as retweeted by a user.
type Retweet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_retweets_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_retweets_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Bookmark marks a post as saved by a user. Bookmarks are private.
type Bookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_bookmarks_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_bookmarks_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
