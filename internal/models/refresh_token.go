package models

import "time"

// RefreshToken is the persisted half of a refresh token. Only the SHA-256 of
// the opaque value is stored; the raw value is handed to the client once.
// Username is bound at issuance and never changes.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null"`
	Username  string    `gorm:"size:30;not null;index"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
