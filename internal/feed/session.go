package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/cache"

	"github.com/redis/go-redis/v9"
)

// Cursor tracks progress through one source.
type Cursor struct {
	Page      int  `json:"page"`
	Offset    int  `json:"offset"`
	Exhausted bool `json:"exhausted"`
}

// Session is the per-viewer paging state shared by successive feed pages.
type Session struct {
	ID       string             `json:"id"`
	ViewerID uint               `json:"viewer_id"`
	Cursors  map[Source]*Cursor `json:"cursors"`
	Seen     map[uint]struct{}  `json:"-"`
	SeenIDs  []uint             `json:"seen"`
	Pages    int                `json:"pages"`
}

func newSession(id string, viewerID uint) *Session {
	s := &Session{
		ID:       id,
		ViewerID: viewerID,
		Cursors:  make(map[Source]*Cursor, len(sources)),
		Seen:     make(map[uint]struct{}),
	}
	for _, src := range sources {
		s.Cursors[src] = &Cursor{}
	}
	return s
}

// HasMore reports whether any source can still produce items.
func (s *Session) HasMore() bool {
	for _, src := range sources {
		if c := s.Cursors[src]; c != nil && !c.Exhausted {
			return true
		}
	}
	return false
}

func (s *Session) markSeen(id uint) bool {
	if _, ok := s.Seen[id]; ok {
		return false
	}
	s.Seen[id] = struct{}{}
	s.SeenIDs = append(s.SeenIDs, id)
	return true
}

// restore rebuilds the lookup set and any cursor missing from older payloads.
func (s *Session) restore() {
	s.Seen = make(map[uint]struct{}, len(s.SeenIDs))
	for _, id := range s.SeenIDs {
		s.Seen[id] = struct{}{}
	}
	if s.Cursors == nil {
		s.Cursors = make(map[Source]*Cursor, len(sources))
	}
	for _, src := range sources {
		if s.Cursors[src] == nil {
			s.Cursors[src] = &Cursor{}
		}
	}
}

// Store persists feed sessions between requests.
type Store interface {
	Load(ctx context.Context, viewerID uint, sessionID string) (*Session, bool, error)
	Save(ctx context.Context, s *Session) error
}

type memoryEntry struct {
	session *Session
	expires time.Time
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an in-process session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, viewerID uint, sessionID string) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cache.FeedSessionKey(viewerID, sessionID)
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return cloneSession(e.session), true, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[cache.FeedSessionKey(s.ViewerID, s.ID)] = memoryEntry{session: cloneSession(s), expires: now.Add(m.ttl)}
	return nil
}

func cloneSession(s *Session) *Session {
	c := &Session{ID: s.ID, ViewerID: s.ViewerID, Pages: s.Pages}
	c.SeenIDs = append([]uint(nil), s.SeenIDs...)
	c.Cursors = make(map[Source]*Cursor, len(s.Cursors))
	for src, cur := range s.Cursors {
		cp := *cur
		c.Cursors[src] = &cp
	}
	c.restore()
	return c
}

// RedisStore keeps sessions in Redis and degrades to memory when Redis fails.
type RedisStore struct {
	rdb      *redis.Client
	ttl      time.Duration
	fallback *MemoryStore
}

// NewStore returns a Redis-backed store, or a memory store when rdb is nil.
func NewStore(rdb *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = cache.FeedSessionTTL
	}
	if rdb == nil {
		return NewMemoryStore(ttl)
	}
	return &RedisStore{rdb: rdb, ttl: ttl, fallback: NewMemoryStore(ttl)}
}

func (r *RedisStore) Load(ctx context.Context, viewerID uint, sessionID string) (*Session, bool, error) {
	var s Session
	found, err := cache.GetJSON(ctx, r.rdb, cache.FeedSessionKey(viewerID, sessionID), &s)
	if err != nil {
		slog.WarnContext(ctx, "feed session load failed, using memory store", slog.Any("error", err))
		return r.fallback.Load(ctx, viewerID, sessionID)
	}
	if !found {
		return r.fallback.Load(ctx, viewerID, sessionID)
	}
	s.restore()
	return &s, true, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if err := cache.SetJSON(ctx, r.rdb, cache.FeedSessionKey(s.ViewerID, s.ID), s, r.ttl); err != nil {
		slog.WarnContext(ctx, "feed session save failed, using memory store", slog.Any("error", err))
		return r.fallback.Save(ctx, s)
	}
	return nil
}
