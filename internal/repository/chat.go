package repository

import (
	"context"
	"sort"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines the interface for chat data operations
type ChatRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Chat, error)
	GetOrCreate(ctx context.Context, userA, userB uint) (*models.Chat, error)
	ListForUser(ctx context.Context, userID uint) ([]models.ChatSummary, error)
	CreateMessage(ctx context.Context, chat *models.Chat, msg *models.Message) error
	GetMessages(ctx context.Context, chatID uint, limit, offset int) ([]*models.Message, error)
	MarkRead(ctx context.Context, chatID, readerID uint) (int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
}

// chatRepository implements ChatRepository
type chatRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewChatRepository creates a new chat repository. rdb may be nil.
func NewChatRepository(db *gorm.DB, rdb *redis.Client) ChatRepository {
	return &chatRepository{db: db, rdb: rdb}
}

func (r *chatRepository) GetByID(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).First(&chat, id).Error; err != nil {
		return nil, wrapLookup(ctx, "getByID", err, "Chat", id)
	}
	return &chat, nil
}

// GetOrCreate returns the single chat for the unordered pair, creating it on first contact.
// Concurrent callers converge on the same row through the pair's unique index.
func (r *chatRepository) GetOrCreate(ctx context.Context, userA, userB uint) (*models.Chat, error) {
	u1, u2 := models.NormalizePair(userA, userB)
	candidate := models.Chat{User1ID: u1, User2ID: u2}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(&candidate).Error
	if err != nil {
		return nil, internalError(ctx, "chats", "getOrCreate", err)
	}

	var chat models.Chat
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&chat).Error; err != nil {
		return nil, wrapLookup(ctx, "getOrCreate", err, "Chat", [2]uint{u1, u2})
	}
	return &chat, nil
}

type chatUnread struct {
	ChatID uint
	Count  int64
}

// ListForUser returns the user's chats with the other participant, the last
// message and the unread count, most recently active first.
func (r *chatRepository) ListForUser(ctx context.Context, userID uint) ([]models.ChatSummary, error) {
	var chats []models.Chat
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Find(&chats).Error; err != nil {
		return nil, internalError(ctx, "chats", "listForUser", err)
	}
	if len(chats) == 0 {
		return []models.ChatSummary{}, nil
	}

	chatIDs := lo.Map(chats, func(c models.Chat, _ int) uint { return c.ID })
	otherIDs := lo.Uniq(lo.Map(chats, func(c models.Chat, _ int) uint { return c.OtherParticipant(userID) }))

	var others []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", otherIDs).Find(&others).Error; err != nil {
		return nil, internalError(ctx, "chats", "listForUser", err)
	}
	usersByID := lo.KeyBy(others, func(u models.User) uint { return u.ID })

	var last []models.Message
	if err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&models.Message{}).
			Select("MAX(id)").
			Where("chat_id IN ?", chatIDs).
			Group("chat_id")).
		Find(&last).Error; err != nil {
		return nil, internalError(ctx, "chats", "listForUser", err)
	}
	lastByChat := lo.KeyBy(last, func(m models.Message) uint { return m.ChatID })

	var unread []chatUnread
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("chat_id, COUNT(*) AS count").
		Where("chat_id IN ? AND sender_id <> ? AND is_read = ?", chatIDs, userID, false).
		Group("chat_id").
		Scan(&unread).Error; err != nil {
		return nil, internalError(ctx, "chats", "listForUser", err)
	}
	unreadByChat := lo.SliceToMap(unread, func(u chatUnread) (uint, int64) { return u.ChatID, u.Count })

	summaries := lo.Map(chats, func(c models.Chat, _ int) models.ChatSummary {
		other := usersByID[c.OtherParticipant(userID)]
		s := models.ChatSummary{
			ID:          c.ID,
			OtherUser:   other.Public(),
			UnreadCount: unreadByChat[c.ID],
			UpdatedAt:   c.UpdatedAt,
		}
		if m, ok := lastByChat[c.ID]; ok {
			s.LastMessage = &m
			if m.CreatedAt.After(s.UpdatedAt) {
				s.UpdatedAt = m.CreatedAt
			}
		}
		return s
	})
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// CreateMessage stores msg and bumps the chat's activity time.
func (r *chatRepository) CreateMessage(ctx context.Context, chat *models.Chat, msg *models.Message) error {
	msg.ChatID = chat.ID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Chat{}).Where("id = ?", chat.ID).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return internalError(ctx, "messages", "createMessage", err)
	}
	cache.InvalidateUnread(ctx, r.rdb, chat.OtherParticipant(msg.SenderID))
	return nil
}

// GetMessages returns a page of the latest messages in chronological order.
func (r *chatRepository) GetMessages(ctx context.Context, chatID uint, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, internalError(ctx, "messages", "getMessages", err)
	}
	return lo.Reverse(messages), nil
}

// MarkRead flips every unread message not sent by the reader. Read flags never revert.
func (r *chatRepository) MarkRead(ctx context.Context, chatID, readerID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chatID, readerID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, internalError(ctx, "messages", "markRead", res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidateUnread(ctx, r.rdb, readerID)
	}
	return res.RowsAffected, nil
}

// UnreadCount counts unread messages addressed to userID across all chats.
func (r *chatRepository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := cache.Aside(ctx, r.rdb, cache.UnreadCountKey(userID), &count, cache.UnreadCountTTL, func() error {
		return r.db.WithContext(ctx).Model(&models.Message{}).
			Joins("JOIN chats ON chats.id = messages.chat_id").
			Where("(chats.user1_id = ? OR chats.user2_id = ?) AND messages.sender_id <> ? AND messages.is_read = ?",
				userID, userID, userID, false).
			Count(&count).Error
	})
	if err != nil {
		return 0, internalError(ctx, "messages", "unreadCount", err)
	}
	return count, nil
}
