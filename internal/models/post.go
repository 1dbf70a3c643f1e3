package models

import "time"

// PostKind discriminates root posts from replies.
type PostKind string

const (
	PostKindOriginal PostKind = "ORIGINAL"
	PostKindReply    PostKind = "REPLY"
)

// Valid reports whether k is a known post kind.
func (k PostKind) Valid() bool {
	return k == PostKindOriginal || k == PostKindReply
}

// Post represents a root post or a reply. ParentID is set iff Kind is REPLY.
// The counters are owned by the engagement layer and never written by clients.
// The check constraints carry the same names as in migrations/00001_init.sql.
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	User         User      `gorm:"foreignKey:UserID" json:"user"`
	Text         string    `gorm:"type:text;not null" json:"text"`
	Kind         PostKind  `gorm:"size:16;not null;index;check:chk_posts_kind,kind IN ('ORIGINAL', 'REPLY')" json:"kind"`
	ParentID     *uint     `gorm:"index;check:chk_posts_parent,(kind = 'REPLY') = (parent_id IS NOT NULL)" json:"parent_id,omitempty"`
	ReplyCount   int64     `gorm:"not null;default:0;check:chk_posts_counters,reply_count >= 0 AND retweet_count >= 0 AND like_count >= 0" json:"reply_count"`
	RetweetCount int64     `gorm:"not null;default:0" json:"retweet_count"`
	LikeCount    int64     `gorm:"not null;default:0" json:"like_count"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
