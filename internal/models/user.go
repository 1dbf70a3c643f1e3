// Package models contains data structures for the application's domain models.
package models

import "time"

// User represents an account in the chirp application.
type User struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	FirstName  string     `gorm:"size:64" json:"first_name"`
	LastName   string     `gorm:"size:64" json:"last_name"`
	Username   string     `gorm:"size:30;uniqueIndex;not null" json:"username"`
	Email      string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string     `gorm:"not null" json:"-"`
	Bio        string     `gorm:"type:text" json:"bio"`
	Location   string     `gorm:"size:128" json:"location"`
	Website    string     `gorm:"size:255" json:"website"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	AvatarPath string     `gorm:"size:512" json:"avatar_path"`
	BannerPath string     `gorm:"size:512" json:"banner_path"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
