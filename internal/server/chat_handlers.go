package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetChats handles GET /api/chats
// @Summary The caller's chats, most recent first
// @Tags chats
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.ChatSummary
// @Router /chats [get]
func (s *Server) GetChats(c *fiber.Ctx) error {
	chats, err := s.chatService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(chats)
}

// GetUnreadCount handles GET /api/chats/unread/count
// @Summary Unread messages across all chats
// @Tags chats
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{unread_count=int}
// @Router /chats/unread/count [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	n, err := s.chatService.UnreadCount(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": n})
}

// GetChatWith handles GET /api/chats/with/:userId
// @Summary Get or create the chat with another user
// @Tags chats
// @Security BearerAuth
// @Produce json
// @Param userId path int true "Other user's ID"
// @Success 200 {object} models.Chat
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /chats/with/{userId} [get]
func (s *Server) GetChatWith(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	chat, err := s.chatService.GetOrCreateWith(c.UserContext(), currentUserID(c), otherID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(chat)
}

// GetMessages handles GET /api/chats/:chatId/messages
// @Summary A page of messages in chronological order
// @Description Fetching marks the caller's unread messages in the chat as read.
// @Tags chats
// @Security BearerAuth
// @Produce json
// @Param chatId path int true "Chat ID"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size (default 50)"
// @Success 200 {array} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Router /chats/{chatId}/messages [get]
func (s *Server) GetMessages(c *fiber.Ctx) error {
	chatID, err := s.parseID(c, "chatId")
	if err != nil {
		return nil
	}
	page, limit := pageParams(c)
	msgs, err := s.chatService.Messages(c.UserContext(), currentUserID(c), chatID, page, limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(msgs)
}

// SendMessage handles POST /api/chats/:chatId/messages
// @Summary Send a message
// @Tags chats
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param chatId path int true "Chat ID"
// @Param request body object{content=string} true "Message"
// @Success 201 {object} models.MessageView
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /chats/{chatId}/messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	chatID, err := s.parseID(c, "chatId")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	msg, err := s.chatService.SendMessage(c.UserContext(), service.SendMessageInput{
		UserID:  currentUserID(c),
		ChatID:  chatID,
		Content: req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkChatRead handles PUT /api/chats/:chatId/read
// @Summary Mark incoming messages read
// @Tags chats
// @Security BearerAuth
// @Produce json
// @Param chatId path int true "Chat ID"
// @Success 200 {object} object{marked=int}
// @Router /chats/{chatId}/read [put]
func (s *Server) MarkChatRead(c *fiber.Ctx) error {
	chatID, err := s.parseID(c, "chatId")
	if err != nil {
		return nil
	}
	n, err := s.chatService.MarkRead(c.UserContext(), currentUserID(c), chatID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"marked": n})
}
