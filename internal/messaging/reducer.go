package messaging

import (
	"maps"
	"strings"
	"unicode/utf8"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
)

// State is everything a connection remembers between events.
type State struct {
	ConnID string
	// VerifiedUserID is the identity proven when the socket was upgraded.
	// Zero means the transport did not verify anyone.
	VerifiedUserID uint
	User           models.PublicProfile
	Joined         map[uint]struct{}
	Disconnected   bool
}

// NewState returns the Unauthenticated state of a fresh connection.
func NewState(connID string, verifiedUserID uint) State {
	return State{ConnID: connID, VerifiedUserID: verifiedUserID}
}

// Authenticated reports whether the connection is bound to a user.
func (s State) Authenticated() bool {
	return s.User.ID != 0 && !s.Disconnected
}

// InChat reports whether the connection joined chatID.
func (s State) InChat(chatID uint) bool {
	_, ok := s.Joined[chatID]
	return ok
}

// Event is an input to Reduce: a client frame or the result of an effect.
type Event interface{ event() }

type (
	Authenticate struct{ UserID uint }
	JoinChat     struct{ ChatID uint }
	LeaveChat    struct{ ChatID uint }
	SendMessage  struct {
		ChatID  uint
		Content string
	}
	TypingStart struct{ ChatID uint }
	TypingStop  struct{ ChatID uint }
	MarkRead    struct{ ChatID uint }
	Disconnect  struct{}
)

// Results fed back by the driver.
type (
	UserLoaded     struct{ User models.PublicProfile }
	UserLoadFailed struct{ NotFound bool }
	ChatResolved   struct {
		Purpose Purpose
		Chat    models.Chat
		Content string
	}
	ChatLookupFailed struct {
		Purpose  Purpose
		ChatID   uint
		NotFound bool
	}
	MessageStored struct {
		Chat    models.Chat
		Message models.Message
	}
	ReadMarked struct {
		Chat  models.Chat
		Count int64
	}
	OperationFailed struct {
		Purpose Purpose
		Err     error
	}
)

func (Authenticate) event()     {}
func (JoinChat) event()         {}
func (LeaveChat) event()        {}
func (SendMessage) event()      {}
func (TypingStart) event()      {}
func (TypingStop) event()       {}
func (MarkRead) event()         {}
func (Disconnect) event()       {}
func (UserLoaded) event()       {}
func (UserLoadFailed) event()   {}
func (ChatResolved) event()     {}
func (ChatLookupFailed) event() {}
func (MessageStored) event()    {}
func (ReadMarked) event()       {}
func (OperationFailed) event()  {}

// Purpose says why a chat is being resolved.
type Purpose int

const (
	PurposeSend Purpose = iota + 1
	PurposeTypingStart
	PurposeTypingStop
	PurposeMarkRead
)

// Effect is work for the driver. Effects run in the order they are returned.
type Effect interface{ effect() }

type (
	LoadUser           struct{ UserID uint }
	RegisterPresence   struct{ UserID uint }
	UnregisterPresence struct{ UserID uint }
	Subscribe          struct{ Channel string }
	Unsubscribe        struct{ Channel string }
	UnsubscribeAll     struct{}
	ResolveChat        struct {
		Purpose Purpose
		ChatID  uint
		Content string
	}
	StoreMessage struct {
		Chat    models.Chat
		Content string
	}
	MarkChatRead struct{ Chat models.Chat }
	// Emit publishes to a channel, skipping the connection named by Except.
	Emit struct {
		Channel string
		Event   string
		Payload any
		Except  string
	}
	// Notify targets the connection registered for UserID, unless it is SkipConn.
	Notify struct {
		UserID   uint
		SkipConn string
		Event    string
		Payload  any
	}
)

func (LoadUser) effect()           {}
func (RegisterPresence) effect()   {}
func (UnregisterPresence) effect() {}
func (Subscribe) effect()          {}
func (Unsubscribe) effect()        {}
func (UnsubscribeAll) effect()     {}
func (ResolveChat) effect()        {}
func (StoreMessage) effect()       {}
func (MarkChatRead) effect()       {}
func (Emit) effect()               {}
func (Notify) effect()             {}

// Error messages sent to the caller.
const (
	msgInvalidUser      = "Invalid user"
	msgAuthFailed       = "Authentication failed"
	msgNotAuthenticated = "Not authenticated"
	msgContentRequired  = "Message content is required"
	msgContentTooLong   = "Message content too long"
	msgChatNotFound     = "Chat not found"
	msgNotParticipant   = "Not authorized to access this chat"
	msgSendFailed       = "Failed to send message"
	msgMarkReadFailed   = "Failed to mark messages as read"
	msgRateLimited      = "Rate limit exceeded. Please wait a moment."
	msgMalformedEvent   = "Malformed event"
	msgUnsupportedEvent = "Unsupported event"
)

// Reduce applies one event. It never mutates s and performs no I/O.
func Reduce(s State, ev Event) (State, []Effect) {
	if s.Disconnected {
		return s, nil
	}

	switch e := ev.(type) {
	case Authenticate:
		if e.UserID == 0 || (s.VerifiedUserID != 0 && e.UserID != s.VerifiedUserID) {
			return s, []Effect{s.toCaller(EventAuthError, ErrorPayload{Message: msgInvalidUser})}
		}
		return s, []Effect{LoadUser{UserID: e.UserID}}

	case UserLoaded:
		var effects []Effect
		if prev := s.User.ID; prev != 0 && prev != e.User.ID {
			effects = append(effects,
				UnregisterPresence{UserID: prev},
				Unsubscribe{Channel: notifications.UserChannel(prev)},
			)
		}
		s.User = e.User
		return s, append(effects,
			RegisterPresence{UserID: e.User.ID},
			Subscribe{Channel: notifications.UserChannel(e.User.ID)},
			Emit{
				Channel: notifications.AllChannel,
				Event:   EventUserOnline,
				Payload: OnlinePayload{UserID: e.User.ID, Username: e.User.Username, DisplayName: e.User.DisplayName},
				Except:  s.ConnID,
			},
			s.toCaller(EventAuthenticated, AuthenticatedPayload{User: e.User}),
		)

	case UserLoadFailed:
		msg := msgAuthFailed
		if e.NotFound {
			msg = msgInvalidUser
		}
		return s, []Effect{s.toCaller(EventAuthError, ErrorPayload{Message: msg})}

	case JoinChat:
		if !s.Authenticated() || e.ChatID == 0 {
			return s, nil
		}
		s.Joined = cloneJoined(s.Joined)
		s.Joined[e.ChatID] = struct{}{}
		return s, []Effect{Subscribe{Channel: notifications.ChatChannel(e.ChatID)}}

	case LeaveChat:
		if s.InChat(e.ChatID) {
			s.Joined = cloneJoined(s.Joined)
			delete(s.Joined, e.ChatID)
		}
		return s, []Effect{Unsubscribe{Channel: notifications.ChatChannel(e.ChatID)}}

	case SendMessage:
		if !s.Authenticated() {
			return s, []Effect{s.fail(msgNotAuthenticated)}
		}
		content := strings.TrimSpace(e.Content)
		if content == "" {
			return s, []Effect{s.fail(msgContentRequired)}
		}
		if utf8.RuneCountInString(content) > MaxContentLength {
			return s, []Effect{s.fail(msgContentTooLong)}
		}
		if e.ChatID == 0 {
			return s, []Effect{s.fail(msgChatNotFound)}
		}
		return s, []Effect{ResolveChat{Purpose: PurposeSend, ChatID: e.ChatID, Content: content}}

	case TypingStart:
		return s, s.resolveIfAuthenticated(PurposeTypingStart, e.ChatID)
	case TypingStop:
		return s, s.resolveIfAuthenticated(PurposeTypingStop, e.ChatID)
	case MarkRead:
		return s, s.resolveIfAuthenticated(PurposeMarkRead, e.ChatID)

	case ChatResolved:
		return s, s.onChat(e)

	case ChatLookupFailed:
		switch e.Purpose {
		case PurposeSend:
			if e.NotFound {
				return s, []Effect{s.fail(msgChatNotFound)}
			}
			return s, []Effect{s.fail(msgSendFailed)}
		case PurposeMarkRead:
			if e.NotFound {
				return s, []Effect{s.fail(msgChatNotFound)}
			}
			return s, []Effect{s.fail(msgMarkReadFailed)}
		}
		return s, nil

	case MessageStored:
		other := e.Chat.OtherParticipant(s.User.ID)
		view := models.NewMessageView(&e.Message, s.User)
		payload := NewMessagePayload{ChatID: e.Chat.ID, Message: view}
		return s, []Effect{
			Emit{Channel: notifications.UserChannel(s.User.ID), Event: EventNewMessage, Payload: payload},
			Emit{Channel: notifications.UserChannel(other), Event: EventNewMessage, Payload: payload},
			Notify{
				UserID:   other,
				SkipConn: s.ConnID,
				Event:    EventMessageNotification,
				Payload: NotificationPayload{
					ChatID:  e.Chat.ID,
					Sender:  s.User,
					Preview: preview(e.Message.Content),
				},
			},
		}

	case ReadMarked:
		other := e.Chat.OtherParticipant(s.User.ID)
		return s, []Effect{Emit{
			Channel: notifications.UserChannel(other),
			Event:   EventMessagesRead,
			Payload: ReadPayload{ChatID: e.Chat.ID, ReadBy: s.User.ID},
		}}

	case OperationFailed:
		return s, []Effect{s.fail(failureMessage(e))}

	case Disconnect:
		var effects []Effect
		if s.User.ID != 0 {
			effects = append(effects,
				UnregisterPresence{UserID: s.User.ID},
				Emit{
					Channel: notifications.AllChannel,
					Event:   EventUserOffline,
					Payload: OfflinePayload{UserID: s.User.ID, Username: s.User.Username},
					Except:  s.ConnID,
				},
			)
		}
		s.Disconnected = true
		s.Joined = nil
		return s, append(effects, UnsubscribeAll{})
	}

	return s, nil
}

func (s State) onChat(e ChatResolved) []Effect {
	member := e.Chat.HasParticipant(s.User.ID)
	other := e.Chat.OtherParticipant(s.User.ID)

	switch e.Purpose {
	case PurposeSend:
		if !member {
			return []Effect{s.fail(msgNotParticipant)}
		}
		return []Effect{StoreMessage{Chat: e.Chat, Content: e.Content}}
	case PurposeTypingStart:
		if !member {
			return nil
		}
		return []Effect{Emit{
			Channel: notifications.UserChannel(other),
			Event:   EventUserTyping,
			Payload: TypingPayload{ChatID: e.Chat.ID, UserID: s.User.ID, Username: s.User.Username},
		}}
	case PurposeTypingStop:
		if !member {
			return nil
		}
		return []Effect{Emit{
			Channel: notifications.UserChannel(other),
			Event:   EventUserStoppedTyping,
			Payload: StoppedTypingPayload{ChatID: e.Chat.ID, UserID: s.User.ID},
		}}
	case PurposeMarkRead:
		if !member {
			return []Effect{s.fail(msgNotParticipant)}
		}
		return []Effect{MarkChatRead{Chat: e.Chat}}
	}
	return nil
}

func (s State) resolveIfAuthenticated(p Purpose, chatID uint) []Effect {
	if !s.Authenticated() || chatID == 0 {
		return nil
	}
	return []Effect{ResolveChat{Purpose: p, ChatID: chatID}}
}

// toCaller addresses this connection only.
func (s State) toCaller(event string, payload any) Emit {
	return Emit{Channel: notifications.ConnChannel(s.ConnID), Event: event, Payload: payload}
}

func (s State) fail(msg string) Emit {
	return s.toCaller(EventError, ErrorPayload{Message: msg})
}

// failureMessage exposes client-facing AppError messages and hides the rest.
func failureMessage(e OperationFailed) string {
	switch models.ErrorCode(e.Err) {
	case models.CodeValidation, models.CodeForbidden, models.CodeNotFound:
		return models.ErrorMessage(e.Err)
	}
	if e.Purpose == PurposeMarkRead {
		return msgMarkReadFailed
	}
	return msgSendFailed
}

func cloneJoined(m map[uint]struct{}) map[uint]struct{} {
	if m == nil {
		return make(map[uint]struct{})
	}
	return maps.Clone(m)
}
