package models

import "time"

// Chat is a two-party conversation. Participants are stored with
// User1ID < User2ID so the pair is unique regardless of who started it.
type Chat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	User1ID   uint      `gorm:"not null;uniqueIndex:idx_chat_pair" json:"user1_id"`
	User2ID   uint      `gorm:"not null;uniqueIndex:idx_chat_pair;index" json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizePair orders two user ids the way chats are stored.
func NormalizePair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// HasParticipant reports whether userID is one of the two chat members.
func (c *Chat) HasParticipant(userID uint) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns whichever participant differs from userID.
func (c *Chat) OtherParticipant(userID uint) uint {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// Message is a single direct message inside a chat.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"not null;index" json:"chat_id"`
	SenderID  uint      `gorm:"not null;index" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// MessageView is a stored message merged with the sender's public profile.
type MessageView struct {
	Message
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	ProfileImage string `json:"profile_image"`
}

// NewMessageView merges a message with its sender.
func NewMessageView(msg *Message, sender PublicProfile) MessageView {
	return MessageView{
		Message:      *msg,
		Username:     sender.Username,
		DisplayName:  sender.DisplayName,
		ProfileImage: sender.ProfileImage,
	}
}

// ChatSummary is one row of the chat list.
type ChatSummary struct {
	ID          uint          `json:"id"`
	OtherUser   PublicProfile `json:"other_user"`
	LastMessage *Message      `json:"last_message,omitempty"`
	UnreadCount int64         `json:"unread_count"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
