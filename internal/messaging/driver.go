package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// UserStore loads the identity bound by authenticate.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// ChatStore is the persistence the session needs.
type ChatStore interface {
	GetByID(ctx context.Context, id uint) (*models.Chat, error)
	CreateMessage(ctx context.Context, chat *models.Chat, msg *models.Message) error
	MarkRead(ctx context.Context, chatID, readerID uint) (int64, error)
}

// Presence maps users to their registered connection.
type Presence interface {
	Register(userID uint, connID string)
	Unregister(userID uint)
	Lookup(userID uint) (string, bool)
}

// Options tune the driver. Zero values fall back to defaults.
type Options struct {
	Redis *redis.Client
	// SendLimit is the number of messages one user may send per minute.
	SendLimit int
	// TypingLimit is the number of typing events one user may send per 10 seconds.
	TypingLimit int
}

const (
	defaultSendLimit   = 15
	defaultTypingLimit = 10
)

// Handler runs sessions against shared collaborators. Build one per process.
type Handler struct {
	users       UserStore
	chats       ChatStore
	presence    Presence
	broadcaster notifications.Broadcaster
	rdb         *redis.Client
	sendLimit   int
	typingLimit int
	log         *observability.WSLogger
}

// NewHandler wires the session driver.
func NewHandler(users UserStore, chats ChatStore, presence Presence, b notifications.Broadcaster, opts Options) *Handler {
	if opts.SendLimit <= 0 {
		opts.SendLimit = defaultSendLimit
	}
	if opts.TypingLimit <= 0 {
		opts.TypingLimit = defaultTypingLimit
	}
	return &Handler{
		users:       users,
		chats:       chats,
		presence:    presence,
		broadcaster: b,
		rdb:         opts.Redis,
		sendLimit:   opts.SendLimit,
		typingLimit: opts.TypingLimit,
		log:         observability.NewWSLogger("messaging"),
	}
}

// Session is one live connection. Events are processed one at a time.
type Session struct {
	h         *Handler
	mu        sync.Mutex
	state     State
	closeOnce sync.Once
}

// Open attaches sink to the broadcaster and starts an Unauthenticated session.
func (h *Handler) Open(ctx context.Context, connID string, verifiedUserID uint, sink notifications.Sink) *Session {
	h.broadcaster.Attach(connID, sink)
	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(ctx, connID, verifiedUserID)
	return &Session{h: h, state: NewState(connID, verifiedUserID)}
}

// State returns a snapshot of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleFrame decodes a client frame and dispatches it. Malformed frames are
// answered with an error event to this connection.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) {
	ev, err := Decode(raw)
	if err != nil {
		s.mu.Lock()
		state := s.state
		s.mu.Unlock()
		s.h.log.LogError(ctx, state.ConnID, state.User.ID, err, "decode")
		observability.WebSocketEventsTotal.WithLabelValues("invalid").Inc()
		if state.Disconnected {
			return
		}
		msg := msgMalformedEvent
		if errors.Is(err, ErrUnknownEvent) {
			msg = msgUnsupportedEvent
		}
		s.h.run(ctx, state, state.fail(msg))
		return
	}
	s.Dispatch(ctx, ev)
}

// Dispatch feeds an inbound event through the reducer and executes the
// resulting effects, including every follow-up event they produce.
func (s *Session) Dispatch(ctx context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := eventName(ev)
	observability.WebSocketEventsTotal.WithLabelValues(name).Inc()
	ctx = observability.WithCorrelationID(ctx, s.state.ConnID)
	ctx, span := observability.StartSpan(ctx, "messaging", name,
		attribute.String("conn.id", s.state.ConnID),
		attribute.Int64("user.id", int64(s.state.User.ID)),
	)
	defer observability.EndSpan(span, nil)

	if reply, limited := s.h.throttle(ctx, s.state, ev); limited {
		if reply != nil {
			s.h.run(ctx, s.state, reply)
		}
		return
	}

	queue := []Event{ev}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		var effects []Effect
		s.state, effects = Reduce(s.state, next)
		for _, eff := range effects {
			if follow := s.h.run(ctx, s.state, eff); follow != nil {
				queue = append(queue, follow)
			}
		}
	}
}

// Close runs disconnect. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.Dispatch(ctx, Disconnect{})
		state := s.State()
		observability.WebSocketConnectionsTotal.Dec()
		s.h.log.LogDisconnect(ctx, state.ConnID, state.User.ID, "closed")
	})
}

// throttle reports whether ev exceeds its rate limit and how to answer it.
// Throttled typing events are dropped silently.
func (h *Handler) throttle(ctx context.Context, s State, ev Event) (Effect, bool) {
	if !s.Authenticated() {
		return nil, false
	}
	id := fmt.Sprintf("user:%d", s.User.ID)

	switch ev.(type) {
	case SendMessage:
		allowed, err := middleware.CheckRateLimit(ctx, h.rdb, "send_chat", id, h.sendLimit, time.Minute)
		if err != nil {
			h.log.LogError(ctx, s.ConnID, s.User.ID, err, EventSendMessage)
			return nil, false
		}
		if !allowed {
			return s.fail(msgRateLimited), true
		}
	case TypingStart, TypingStop:
		allowed, err := middleware.CheckRateLimit(ctx, h.rdb, "typing", id, h.typingLimit, 10*time.Second)
		if err == nil && !allowed {
			return nil, true
		}
	}
	return nil, false
}

// run executes one effect and returns the follow-up event, if any.
func (h *Handler) run(ctx context.Context, s State, eff Effect) Event {
	switch e := eff.(type) {
	case LoadUser:
		user, err := h.users.GetByID(ctx, e.UserID)
		if err != nil {
			if !models.IsNotFound(err) {
				h.log.LogError(ctx, s.ConnID, e.UserID, err, EventAuthenticate)
			}
			return UserLoadFailed{NotFound: models.IsNotFound(err)}
		}
		return UserLoaded{User: user.Public()}

	case RegisterPresence:
		h.presence.Register(e.UserID, s.ConnID)
		h.log.LogLifecycle(ctx, "presence_registered", map[string]interface{}{"user_id": e.UserID})
	case UnregisterPresence:
		h.presence.Unregister(e.UserID)
		h.log.LogLifecycle(ctx, "presence_unregistered", map[string]interface{}{"user_id": e.UserID})

	case Subscribe:
		h.broadcaster.Subscribe(s.ConnID, e.Channel)
	case Unsubscribe:
		h.broadcaster.Unsubscribe(s.ConnID, e.Channel)
	case UnsubscribeAll:
		h.broadcaster.Detach(s.ConnID)

	case ResolveChat:
		chat, err := h.chats.GetByID(ctx, e.ChatID)
		if err != nil {
			notFound := models.IsNotFound(err)
			if !notFound {
				h.log.LogError(ctx, s.ConnID, s.User.ID, err, "resolve_chat")
			}
			return ChatLookupFailed{Purpose: e.Purpose, ChatID: e.ChatID, NotFound: notFound}
		}
		return ChatResolved{Purpose: e.Purpose, Chat: *chat, Content: e.Content}

	case StoreMessage:
		chat := e.Chat
		msg := &models.Message{ChatID: chat.ID, SenderID: s.User.ID, Content: e.Content}
		if err := h.chats.CreateMessage(ctx, &chat, msg); err != nil {
			h.log.LogError(ctx, s.ConnID, s.User.ID, err, EventSendMessage)
			return OperationFailed{Purpose: PurposeSend, Err: err}
		}
		observability.MessagesSent.WithLabelValues("ws").Inc()
		return MessageStored{Chat: chat, Message: *msg}

	case MarkChatRead:
		n, err := h.chats.MarkRead(ctx, e.Chat.ID, s.User.ID)
		if err != nil {
			h.log.LogError(ctx, s.ConnID, s.User.ID, err, EventMarkRead)
			return OperationFailed{Purpose: PurposeMarkRead, Err: err}
		}
		return ReadMarked{Chat: e.Chat, Count: n}

	case Emit:
		if err := h.broadcaster.Publish(ctx, e.Channel, e.Event, e.Payload, e.Except); err != nil {
			h.log.LogError(ctx, s.ConnID, s.User.ID, err, e.Event)
		}

	case Notify:
		connID, ok := h.presence.Lookup(e.UserID)
		if !ok || connID == e.SkipConn {
			return nil
		}
		if err := h.broadcaster.Publish(ctx, notifications.ConnChannel(connID), e.Event, e.Payload, ""); err != nil {
			h.log.LogError(ctx, s.ConnID, s.User.ID, err, e.Event)
		}
	}
	return nil
}

func eventName(ev Event) string {
	switch ev.(type) {
	case Authenticate:
		return EventAuthenticate
	case JoinChat:
		return EventJoinChat
	case LeaveChat:
		return EventLeaveChat
	case SendMessage:
		return EventSendMessage
	case TypingStart:
		return EventTypingStart
	case TypingStop:
		return EventTypingStop
	case MarkRead:
		return EventMarkRead
	case Disconnect:
		return EventDisconnect
	}
	return "internal"
}
