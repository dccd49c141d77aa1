package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "trim and lower", in: []string{" Go ", "WEB"}, want: []string{"go", "web"}},
		{name: "drops blanks", in: []string{"", "  ", "poetry"}, want: []string{"poetry"}},
		{name: "dedupes keeping first", in: []string{"b", "A", "a", "B"}, want: []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, []string(NormalizeTags(tt.in)))
		})
	}
}

func TestChatParticipants(t *testing.T) {
	u1, u2 := NormalizePair(9, 4)
	assert.Equal(t, uint(4), u1)
	assert.Equal(t, uint(9), u2)

	chat := &Chat{User1ID: u1, User2ID: u2}
	assert.True(t, chat.HasParticipant(4))
	assert.True(t, chat.HasParticipant(9))
	assert.False(t, chat.HasParticipant(5))
	assert.Equal(t, uint(9), chat.OtherParticipant(4))
	assert.Equal(t, uint(4), chat.OtherParticipant(9))
}

func TestPostVisibleTo(t *testing.T) {
	draft := &Post{UserID: 3, IsPublished: false}
	assert.True(t, draft.VisibleTo(3))
	assert.False(t, draft.VisibleTo(4))
	assert.False(t, draft.VisibleTo(0))

	published := &Post{UserID: 3, IsPublished: true}
	assert.True(t, published.VisibleTo(0))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusNotFound, StatusFor(NewNotFoundError("Chat", 1)))
	assert.Equal(t, fiber.StatusBadRequest, StatusFor(NewValidationError("bad")))
	assert.Equal(t, fiber.StatusForbidden, StatusFor(NewForbiddenError("no")))
	assert.Equal(t, fiber.StatusUnauthorized, StatusFor(NewUnauthorizedError("who")))
	assert.Equal(t, fiber.StatusConflict, StatusFor(NewConflictError("dup")))
	assert.Equal(t, fiber.StatusServiceUnavailable, StatusFor(NewUnavailableError("down", nil)))
	assert.Equal(t, fiber.StatusInternalServerError, StatusFor(errors.New("boom")))

	wrapped := fmt.Errorf("loading chat: %w", NewNotFoundError("Chat", 7))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, fiber.StatusNotFound, StatusFor(wrapped))
}
