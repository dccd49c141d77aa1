// Package messaging implements the per-connection direct-messaging session:
// a pure state machine and the driver that performs its effects.
package messaging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"inkwell/internal/models"
)

// Inbound event names.
const (
	EventAuthenticate = "authenticate"
	EventJoinChat     = "join_chat"
	EventLeaveChat    = "leave_chat"
	EventSendMessage  = "send_message"
	EventTypingStart  = "typing_start"
	EventTypingStop   = "typing_stop"
	EventMarkRead     = "mark_read"
	EventDisconnect   = "disconnect"
)

// Outbound event names.
const (
	EventAuthenticated       = "authenticated"
	EventAuthError           = "auth_error"
	EventNewMessage          = "new_message"
	EventMessageNotification = "message_notification"
	EventUserTyping          = "user_typing"
	EventUserStoppedTyping   = "user_stopped_typing"
	EventMessagesRead        = "messages_read"
	EventUserOnline          = "user_online"
	EventUserOffline         = "user_offline"
	EventError               = "error"
)

// PreviewLength is the number of characters of a message shown in a notification.
const PreviewLength = 50

// MaxContentLength bounds a single message body, in characters.
const MaxContentLength = 10000

// Frame is the wire shape of an inbound event.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AuthenticatedPayload is sent to the caller after authenticate succeeds.
type AuthenticatedPayload struct {
	User models.PublicProfile `json:"user"`
}

// ErrorPayload carries a human-readable failure for auth_error and error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessagePayload is delivered to both participants of a chat.
type NewMessagePayload struct {
	ChatID  uint               `json:"chatId"`
	Message models.MessageView `json:"message"`
}

// NotificationPayload alerts the recipient's registered connection.
type NotificationPayload struct {
	ChatID  uint                 `json:"chatId"`
	Sender  models.PublicProfile `json:"sender"`
	Preview string               `json:"preview"`
}

type TypingPayload struct {
	ChatID   uint   `json:"chatId"`
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
}

type StoppedTypingPayload struct {
	ChatID uint `json:"chatId"`
	UserID uint `json:"userId"`
}

type ReadPayload struct {
	ChatID uint `json:"chatId"`
	ReadBy uint `json:"readBy"`
}

type OnlinePayload struct {
	UserID      uint   `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

type OfflinePayload struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
}

var errMissingID = errors.New("missing id")

// ErrUnknownEvent is returned by Decode for an unrecognized event type.
var ErrUnknownEvent = errors.New("unknown event type")

// Decode turns a raw frame into an inbound event. Scalar payloads are accepted
// for authenticate, join_chat and leave_chat as well as object payloads.
func Decode(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Type {
	case EventAuthenticate:
		id, err := decodeID(f.Payload, "userId")
		if err != nil {
			return nil, err
		}
		return Authenticate{UserID: id}, nil
	case EventJoinChat, EventLeaveChat:
		id, err := decodeID(f.Payload, "chatId")
		if err != nil {
			return nil, err
		}
		if f.Type == EventJoinChat {
			return JoinChat{ChatID: id}, nil
		}
		return LeaveChat{ChatID: id}, nil
	case EventSendMessage:
		var p struct {
			ChatID  uint   `json:"chatId"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Type, err)
		}
		return SendMessage{ChatID: p.ChatID, Content: p.Content}, nil
	case EventTypingStart, EventTypingStop, EventMarkRead:
		id, err := decodeID(f.Payload, "chatId")
		if err != nil {
			return nil, err
		}
		switch f.Type {
		case EventTypingStart:
			return TypingStart{ChatID: id}, nil
		case EventTypingStop:
			return TypingStop{ChatID: id}, nil
		}
		return MarkRead{ChatID: id}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownEvent, f.Type)
}

// decodeID reads either a bare number or an object holding field.
func decodeID(raw json.RawMessage, field string) (uint, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errMissingID
	}

	var id uint
	if raw[0] != '{' {
		if err := json.Unmarshal(raw, &id); err != nil {
			return 0, fmt.Errorf("decode %s: %w", field, err)
		}
		return id, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, fmt.Errorf("decode %s: %w", field, err)
	}
	v, ok := obj[field]
	if !ok {
		return 0, errMissingID
	}
	if err := json.Unmarshal(v, &id); err != nil {
		return 0, fmt.Errorf("decode %s: %w", field, err)
	}
	return id, nil
}

// preview truncates content to PreviewLength characters.
func preview(content string) string {
	r := []rune(content)
	if len(r) <= PreviewLength {
		return content
	}
	return string(r[:PreviewLength])
}
