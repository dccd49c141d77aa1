// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Theme preferences accepted on profile updates.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// User represents a registered Inkwell account.
type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Email           string         `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Username        string         `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName     string         `json:"display_name"`
	ProfileImage    string         `gorm:"size:500" json:"profile_image"`
	Bio             string         `gorm:"type:text" json:"bio"`
	ThemePreference string         `gorm:"size:10;not null" json:"theme_preference"`
	Password        string         `json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// PublicProfile is the subset of a user that other users may see.
type PublicProfile struct {
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	ProfileImage string `json:"profile_image"`
}

// Public strips private fields from the user.
func (u *User) Public() PublicProfile {
	if u == nil {
		return PublicProfile{}
	}
	return PublicProfile{
		ID:           u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		ProfileImage: u.ProfileImage,
	}
}

// UserProfile is a user page with follow graph aggregates.
type UserProfile struct {
	ID              uint      `json:"id"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name"`
	ProfileImage    string    `json:"profile_image"`
	Bio             string    `json:"bio"`
	ThemePreference string    `json:"theme_preference"`
	CreatedAt       time.Time `json:"created_at"`
	FollowersCount  int64     `json:"followers_count"`
	FollowingCount  int64     `json:"following_count"`
	PostsCount      int64     `json:"posts_count"`
	IsFollowing     bool      `json:"is_following"`
}
