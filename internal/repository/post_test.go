package repository

import (
	"context"
	"regexp"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/search"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_LikeIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db, nil, 0)
	ctx := context.Background()

	author := createUser(t, db, "author")
	reader := createUser(t, db, "reader")
	post := createPost(t, db, author, "First", true)

	require.NoError(t, repo.Like(ctx, reader.ID, post.ID))
	require.NoError(t, repo.Like(ctx, reader.ID, post.ID))

	got, err := repo.GetByID(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount)
	assert.True(t, got.Liked)

	anon, err := repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.False(t, anon.Liked)

	require.NoError(t, repo.Unlike(ctx, reader.ID, post.ID))
	require.NoError(t, repo.Unlike(ctx, reader.ID, post.ID))

	got, err = repo.GetByID(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LikesCount)
	assert.False(t, got.Liked)
}

func TestPostRepository_GetByIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db, nil, 0)

	_, err := repo.GetByID(context.Background(), 999, 0)
	assert.True(t, models.IsNotFound(err))
}

func TestPostRepository_FeedSources(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db, nil, 0)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	viewer := createUser(t, db, "viewer")
	followed := createUser(t, db, "followed")
	stranger := createUser(t, db, "stranger")

	createPost(t, db, viewer, "mine", true)
	createPost(t, db, viewer, "my draft", false)
	f1 := createPost(t, db, followed, "followed one", true)
	f2 := createPost(t, db, followed, "followed two", true)
	createPost(t, db, followed, "followed draft", false)
	createPost(t, db, stranger, "stranger", true)

	require.NoError(t, follows.Follow(ctx, viewer.ID, followed.ID))

	own, err := repo.ListByUser(ctx, viewer.ID, false, 5, 0, viewer.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "mine", own[0].Title)
	require.NotNil(t, own[0].User)
	assert.Equal(t, "viewer", own[0].User.Username)

	withDrafts, err := repo.ListByUser(ctx, viewer.ID, true, 5, 0, viewer.ID)
	require.NoError(t, err)
	assert.Len(t, withDrafts, 2)

	feed, err := repo.ListFollowed(ctx, viewer.ID, 5, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, f2.ID, feed[0].ID, "newest first")
	assert.Equal(t, f1.ID, feed[1].ID)

	page, err := repo.ListFollowed(ctx, viewer.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, f1.ID, page[0].ID)

	global, err := repo.ListGlobal(ctx, viewer.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, global, 4)
	for _, p := range global {
		assert.True(t, p.IsPublished)
	}

	count, err := repo.CountPublishedByUser(ctx, followed.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	latest, err := repo.LatestPublishedByUser(ctx, followed.ID, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, f2.ID, latest[0].ID)
}

func TestPostRepository_UpdateAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db, nil, 0)
	ctx := context.Background()

	author := createUser(t, db, "author")
	post := createPost(t, db, author, "draft", false)

	post.Title = "renamed"
	post.IsPublished = true
	post.Tags = models.NormalizeTags([]string{"Go", "go", " poetry "})
	require.NoError(t, repo.Update(ctx, post))

	got, err := repo.GetByID(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.True(t, got.IsPublished)
	assert.Equal(t, models.Tags{"go", "poetry"}, got.Tags)

	require.NoError(t, repo.Delete(ctx, post.ID))
	_, err = repo.GetByID(ctx, post.ID, author.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestPostRepository_SearchRunsRankedQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, nil, 0)

	q := search.Build(search.Request{Title: "golang", Tag: "go", Limit: 5}, search.Options{FullText: true})

	mock.ExpectQuery(`SELECT posts\.\*, .*AS liked, ts_rank\(.*\) AS relevance FROM "posts" WHERE .*posts\.is_published = .* ILIKE .* plainto_tsquery.* = ANY\(posts\.tags\).* ORDER BY relevance DESC,posts\.created_at DESC LIMIT \$\d+`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "relevance", "likes_count", "liked"}).
			AddRow(2, 10, "Golang tips", 1.6, 3, true).
			AddRow(1, 10, "Go in practice", 0.4, 0, false))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(10, "gopher"))

	posts, err := repo.Search(context.Background(), q, 7)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "Golang tips", posts[0].Title)
	assert.InDelta(t, 1.6, posts[0].Relevance, 0.001)
	assert.True(t, posts[0].Liked)
	assert.Equal(t, "gopher", posts[1].User.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_SearchWithoutQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, nil, 0)

	q := search.Build(search.Request{}, search.Options{FullText: true})

	mock.ExpectQuery(`SELECT posts\.\*, .* false AS liked FROM "posts" WHERE posts\.is_published = \$1 AND "posts"\."deleted_at" IS NULL ORDER BY posts\.created_at DESC LIMIT \$2`).
		WithArgs(true, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	posts, err := repo.Search(context.Background(), q, 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_PopularTags(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, nil, 0)

	mock.ExpectQuery(`SELECT tag, COUNT\(\*\) AS count\s+FROM posts, unnest\(posts\.tags\) AS tag`).
		WithArgs(true, 20).
		WillReturnRows(sqlmock.NewRows([]string{"tag", "count"}).AddRow("go", 12).AddRow("poetry", 4))

	tags, err := repo.PopularTags(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, []models.TagCount{{Tag: "go", Count: 12}, {Tag: "poetry", Count: 4}}, tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}
