package models

import "time"

// AuthorResponse carries the author display fields of a post.
type AuthorResponse struct {
	ID         uint   `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Username   string `json:"username"`
	AvatarPath string `json:"avatar_path"`
}

// PostResponse is the read projection of a post.
type PostResponse struct {
	ID           uint           `json:"id"`
	Author       AuthorResponse `json:"author"`
	Text         string         `json:"text"`
	Kind         PostKind       `json:"kind"`
	ParentID     *uint          `json:"parent_id,omitempty"`
	ReplyCount   int64          `json:"reply_count"`
	RetweetCount int64          `json:"retweet_count"`
	LikeCount    int64          `json:"like_count"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewPostResponse projects p. The author is read from p.User, which callers
// are expected to have preloaded.
func NewPostResponse(p *Post) PostResponse {
	return PostResponse{
		ID: p.ID,
		Author: AuthorResponse{
			ID:         p.User.ID,
			FirstName:  p.User.FirstName,
			LastName:   p.User.LastName,
			Username:   p.User.Username,
			AvatarPath: p.User.AvatarPath,
		},
		Text:         p.Text,
		Kind:         p.Kind,
		ParentID:     p.ParentID,
		ReplyCount:   p.ReplyCount,
		RetweetCount: p.RetweetCount,
		LikeCount:    p.LikeCount,
		CreatedAt:    p.CreatedAt,
	}
}

// NewPostResponses projects every post in posts, preserving order.
func NewPostResponses(posts []*Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, NewPostResponse(p))
	}
	return out
}

// AuthResponse is returned by login and refresh.
type AuthResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Username     string    `json:"username"`
	ExpiresAt    time.Time `json:"expires_at"`
}
