// Package feed assembles personalized post pages from own, followed and global sources.
package feed

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/google/uuid"
)

// Source names one ranked input of the feed.
type Source string

const (
	SourceOwn      Source = "own"
	SourceFollowed Source = "followed"
	SourceGlobal   Source = "global"
)

// sources lists inputs in priority order.
var sources = []Source{SourceOwn, SourceFollowed, SourceGlobal}

const (
	// OwnBatch and FollowedBatch are requested per page from their sources.
	OwnBatch      = 5
	FollowedBatch = 5
	// Floor is the item count global posts top a page up to.
	Floor = 5
	// GlobalBuffer is requested from global beyond the floor deficit.
	GlobalBuffer = 5
	// GlobalBatch is requested from global on every page after the first.
	GlobalBatch = 5
	// FallbackLimit bounds the last-resort global fetch.
	FallbackLimit = 10
)

// Fetcher reads one page of a source, newest first, annotated for the viewer.
type Fetcher interface {
	Fetch(ctx context.Context, source Source, viewerID uint, limit, offset int) ([]*models.Post, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, source Source, viewerID uint, limit, offset int) ([]*models.Post, error)

func (f FetcherFunc) Fetch(ctx context.Context, source Source, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return f(ctx, source, viewerID, limit, offset)
}

// Page is one assembled slice of the feed.
type Page struct {
	Posts     []*models.Post `json:"posts"`
	HasMore   bool           `json:"has_more"`
	SessionID string         `json:"session_id"`
}

// Assembler merges sources into deduplicated pages.
type Assembler struct {
	fetcher Fetcher
	store   Store
	log     *observability.FeedLogger
	newID   func() string
}

// NewAssembler creates an Assembler.
func NewAssembler(fetcher Fetcher, store Store) *Assembler {
	return &Assembler{
		fetcher: fetcher,
		store:   store,
		log:     observability.NewFeedLogger(),
		newID:   uuid.NewString,
	}
}

// Assemble returns the next page for viewerID. An empty or unknown sessionID
// starts a new session whose id is returned in the page.
func (a *Assembler) Assemble(ctx context.Context, viewerID uint, sessionID string) (*Page, error) {
	ctx, span := observability.StartSpan(ctx, "feed", "assemble")
	var spanErr error
	defer func() { observability.EndSpan(span, spanErr) }()

	session, err := a.loadSession(ctx, viewerID, sessionID)
	if err != nil {
		spanErr = err
		return nil, err
	}
	first := session.Pages == 0

	var posts []*models.Post
	posts = append(posts, a.pull(ctx, session, SourceOwn, OwnBatch)...)
	posts = append(posts, a.pull(ctx, session, SourceFollowed, FollowedBatch)...)
	switch {
	case !first:
		posts = append(posts, a.pull(ctx, session, SourceGlobal, GlobalBatch)...)
	case len(posts) < Floor:
		want := Floor - len(posts) + GlobalBuffer
		posts = append(posts, a.pull(ctx, session, SourceGlobal, want)...)
	}

	if first && len(posts) == 0 {
		fallback, err := a.fallback(ctx, session)
		if err != nil {
			spanErr = err
			return nil, models.NewInternalError(err)
		}
		posts = fallback
	}

	session.Pages++
	if err := a.store.Save(ctx, session); err != nil {
		spanErr = err
		return nil, models.NewInternalError(err)
	}

	if posts == nil {
		posts = []*models.Post{}
	}
	return &Page{Posts: posts, HasMore: session.HasMore(), SessionID: session.ID}, nil
}

func (a *Assembler) loadSession(ctx context.Context, viewerID uint, sessionID string) (*Session, error) {
	if sessionID != "" {
		s, ok, err := a.store.Load(ctx, viewerID, sessionID)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if ok {
			return s, nil
		}
	}
	return newSession(a.newID(), viewerID), nil
}

// pull fetches the next batch of a source and keeps only unseen posts.
// A short batch or an error exhausts the source.
func (a *Assembler) pull(ctx context.Context, s *Session, src Source, limit int) []*models.Post {
	cur := s.Cursors[src]
	if cur.Exhausted || limit <= 0 {
		return nil
	}

	batch, err := a.fetcher.Fetch(ctx, src, s.ViewerID, limit, cur.Offset)
	if err != nil {
		a.log.LogSourceError(ctx, s.ViewerID, string(src), err)
		cur.Exhausted = true
		return nil
	}

	cur.Page++
	cur.Offset += len(batch)
	if len(batch) < limit {
		cur.Exhausted = true
	}

	fresh := make([]*models.Post, 0, len(batch))
	for _, p := range batch {
		if p == nil || !s.markSeen(p.ID) {
			continue
		}
		fresh = append(fresh, p)
	}
	observability.FeedItemsAssembled.WithLabelValues(string(src)).Add(float64(len(fresh)))
	return fresh
}

// fallback is a plain global read used when every source came back empty.
func (a *Assembler) fallback(ctx context.Context, s *Session) ([]*models.Post, error) {
	a.log.LogFallback(ctx, s.ViewerID)
	batch, err := a.fetcher.Fetch(ctx, SourceGlobal, s.ViewerID, FallbackLimit, 0)
	if err != nil {
		return nil, err
	}
	cur := s.Cursors[SourceGlobal]
	cur.Page++
	cur.Offset = len(batch)
	cur.Exhausted = len(batch) < FallbackLimit

	out := make([]*models.Post, 0, len(batch))
	for _, p := range batch {
		if p != nil && s.markSeen(p.ID) {
			out = append(out, p)
		}
	}
	observability.FeedItemsAssembled.WithLabelValues("fallback").Add(float64(len(out)))
	return out, nil
}
