package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"inkwell/internal/feed"
	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedService_RequiresViewer(t *testing.T) {
	svc := NewFeedService(noopPostRepo(), feed.NewMemoryStore(time.Minute))
	_, err := svc.Page(context.Background(), 0, "")
	assertAppErrorCode(t, err, models.CodeUnauthorized)
}

func TestFeedService_PagesThroughEveryPublishedPostOnce(t *testing.T) {
	db := setupTestDB(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	want := map[uint]bool{}
	for i := 0; i < 7; i++ {
		want[createPost(t, db, alice, fmt.Sprintf("alice %d", i), true).ID] = true
		want[createPost(t, db, bob, fmt.Sprintf("bob %d", i), true).ID] = true
		want[createPost(t, db, carol, fmt.Sprintf("carol %d", i), true).ID] = true
	}
	draft := createPost(t, db, alice, "alice draft", false)

	follows := repository.NewFollowRepository(db)
	require.NoError(t, follows.Follow(context.Background(), alice.ID, bob.ID))

	svc := NewFeedService(repository.NewPostRepository(db, nil, 0), feed.NewMemoryStore(time.Minute))
	ctx := context.Background()

	first, err := svc.Page(ctx, alice.ID, "")
	require.NoError(t, err)
	require.NotEmpty(t, first.SessionID)

	authors := map[uint]int{}
	for _, p := range first.Posts {
		authors[p.UserID]++
	}
	assert.Positive(t, authors[alice.ID])
	assert.Positive(t, authors[bob.ID])

	seen := map[uint]int{}
	page := first
	for i := 0; i < 20; i++ {
		for _, p := range page.Posts {
			seen[p.ID]++
		}
		if !page.HasMore {
			break
		}
		page, err = svc.Page(ctx, alice.ID, first.SessionID)
		require.NoError(t, err)
		assert.Equal(t, first.SessionID, page.SessionID)
	}

	assert.False(t, page.HasMore)
	assert.Zero(t, seen[draft.ID])
	for id, n := range seen {
		assert.Equal(t, 1, n, "post %d repeated", id)
		assert.True(t, want[id], "unexpected post %d", id)
	}
	assert.Len(t, seen, len(want))
}

func TestPostSources_RoutesBySource(t *testing.T) {
	repo := noopPostRepo()
	var calls []string
	repo.listByUserFn = func(_ context.Context, author uint, drafts bool, _, _ int, viewer uint) ([]*models.Post, error) {
		assert.Equal(t, viewer, author)
		assert.False(t, drafts)
		calls = append(calls, "own")
		return nil, nil
	}
	repo.listFollowedFn = func(_ context.Context, _ uint, _, _ int) ([]*models.Post, error) {
		calls = append(calls, "followed")
		return nil, nil
	}
	repo.listGlobalFn = func(_ context.Context, _ uint, _, _ int) ([]*models.Post, error) {
		calls = append(calls, "global")
		return nil, nil
	}

	src := PostSources(repo)
	ctx := context.Background()
	for _, s := range []feed.Source{feed.SourceOwn, feed.SourceFollowed, feed.SourceGlobal} {
		_, err := src.Fetch(ctx, s, 4, 5, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"own", "followed", "global"}, calls)

	_, err := src.Fetch(ctx, feed.Source("trending"), 4, 5, 0)
	assert.Error(t, err)
}
