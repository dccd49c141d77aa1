package repository

import (
	"context"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCommentRepository(db)
	posts := NewPostRepository(db, nil, 0)
	ctx := context.Background()

	author := createUser(t, db, "author")
	reader := createUser(t, db, "reader")
	post := createPost(t, db, author, "Essay", true)

	first := &models.Comment{PostID: post.ID, UserID: reader.ID, Content: "first!"}
	require.NoError(t, repo.Create(ctx, first))
	require.NotNil(t, first.User)
	assert.Equal(t, "reader", first.User.Username)
	require.NoError(t, repo.Create(ctx, &models.Comment{PostID: post.ID, UserID: author.ID, Content: "thanks"}))

	comments, err := repo.ListByPost(ctx, post.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first!", comments[0].Content, "oldest first")

	got, err := posts.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentsCount)
}
