package models

import "time"

// WritingSample is a passage a user saved for the writing assistant.
type WritingSample struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (WritingSample) TableName() string { return "ai_writing_samples" }
