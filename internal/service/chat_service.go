// Package service provides application business logic (posts, feed, chats, users, etc.).
package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"inkwell/internal/messaging"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

// ChatService is the HTTP companion to the realtime session handler. Messages
// sent here fan out through the same broadcaster.
type ChatService struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	broadcaster notifications.Broadcaster
}

type SendMessageInput struct {
	UserID  uint
	ChatID  uint
	Content string
}

// NewChatService returns a new ChatService. broadcaster may be nil, in which
// case nothing is pushed to live connections.
func NewChatService(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	broadcaster notifications.Broadcaster,
) *ChatService {
	return &ChatService{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
	}
}

// GetOrCreateWith returns the chat between userID and otherID.
func (s *ChatService) GetOrCreateWith(ctx context.Context, userID, otherID uint) (*models.Chat, error) {
	if otherID == 0 {
		return nil, models.NewValidationError("User ID is required")
	}
	if userID == otherID {
		return nil, models.NewValidationError("Cannot start a chat with yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, otherID); err != nil {
		return nil, err
	}
	return s.chatRepo.GetOrCreate(ctx, userID, otherID)
}

func (s *ChatService) List(ctx context.Context, userID uint) ([]models.ChatSummary, error) {
	return s.chatRepo.ListForUser(ctx, userID)
}

// Messages returns a page of messages oldest first and marks the page's
// incoming messages read.
func (s *ChatService) Messages(ctx context.Context, userID, chatID uint, page, limit int) ([]*models.Message, error) {
	chat, err := s.participantChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	msgs, err := s.chatRepo.GetMessages(ctx, chatID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	if _, err := s.markRead(ctx, chat, userID); err != nil {
		slog.WarnContext(ctx, "mark read on fetch failed", "chat_id", chatID, "error", err)
	}
	return msgs, nil
}

// SendMessage persists a message and pushes new_message to both participants.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.MessageView, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Message content is required")
	}
	if utf8.RuneCountInString(content) > messaging.MaxContentLength {
		return nil, models.NewValidationError("Message content too long")
	}

	chat, err := s.participantChat(ctx, in.UserID, in.ChatID)
	if err != nil {
		return nil, err
	}
	sender, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{ChatID: chat.ID, SenderID: in.UserID, Content: content}
	if err := s.chatRepo.CreateMessage(ctx, chat, msg); err != nil {
		return nil, err
	}
	observability.MessagesSent.WithLabelValues("http").Inc()

	view := models.NewMessageView(msg, sender.Public())
	payload := messaging.NewMessagePayload{ChatID: chat.ID, Message: view}
	s.publish(ctx, notifications.UserChannel(in.UserID), messaging.EventNewMessage, payload)
	s.publish(ctx, notifications.UserChannel(chat.OtherParticipant(in.UserID)), messaging.EventNewMessage, payload)
	return &view, nil
}

// MarkRead marks every incoming message in the chat read and returns how many changed.
func (s *ChatService) MarkRead(ctx context.Context, userID, chatID uint) (int64, error) {
	chat, err := s.participantChat(ctx, userID, chatID)
	if err != nil {
		return 0, err
	}
	return s.markRead(ctx, chat, userID)
}

func (s *ChatService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.chatRepo.UnreadCount(ctx, userID)
}

func (s *ChatService) markRead(ctx context.Context, chat *models.Chat, readerID uint) (int64, error) {
	n, err := s.chatRepo.MarkRead(ctx, chat.ID, readerID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(ctx, notifications.UserChannel(chat.OtherParticipant(readerID)), messaging.EventMessagesRead,
			messaging.ReadPayload{ChatID: chat.ID, ReadBy: readerID})
	}
	return n, nil
}

func (s *ChatService) participantChat(ctx context.Context, userID, chatID uint) (*models.Chat, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, models.NewForbiddenError("Not authorized to access this chat")
	}
	return chat, nil
}

func (s *ChatService) publish(ctx context.Context, channel, event string, payload any) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, channel, event, payload, ""); err != nil {
		slog.WarnContext(ctx, "chat broadcast failed", "channel", channel, "event", event, "error", err)
	}
}
