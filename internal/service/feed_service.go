package service

import (
	"context"
	"fmt"

	"inkwell/internal/feed"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// FeedService serves the personalized home feed.
type FeedService struct {
	assembler *feed.Assembler
}

func NewFeedService(postRepo repository.PostRepository, store feed.Store) *FeedService {
	return &FeedService{assembler: feed.NewAssembler(PostSources(postRepo), store)}
}

// Page returns the next feed page for viewerID. An empty sessionID starts over.
func (s *FeedService) Page(ctx context.Context, viewerID uint, sessionID string) (*feed.Page, error) {
	if viewerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	return s.assembler.Assemble(ctx, viewerID, sessionID)
}

// PostSources reads feed sources from the post repository. Only published
// posts are fed, the viewer's own included.
func PostSources(postRepo repository.PostRepository) feed.Fetcher {
	return feed.FetcherFunc(func(ctx context.Context, source feed.Source, viewerID uint, limit, offset int) ([]*models.Post, error) {
		switch source {
		case feed.SourceOwn:
			return postRepo.ListByUser(ctx, viewerID, false, limit, offset, viewerID)
		case feed.SourceFollowed:
			return postRepo.ListFollowed(ctx, viewerID, limit, offset)
		case feed.SourceGlobal:
			return postRepo.ListGlobal(ctx, viewerID, limit, offset)
		}
		return nil, fmt.Errorf("unknown feed source %q", source)
	})
}
