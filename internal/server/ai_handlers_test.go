package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritingSamples_LatestPublishedPosts(t *testing.T) {
	env := newTestEnv(t)
	alice, token := env.createUser(t, "alice")

	base := time.Now().Add(-time.Hour)
	for i, published := range []bool{true, true, false, true, true} {
		require.NoError(t, env.db.Create(&models.Post{
			UserID:      alice.ID,
			Title:       fmt.Sprintf("post %d", i),
			Content:     "body",
			Tags:        models.Tags{"craft"},
			IsPublished: published,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	var posts []models.Post
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/ai/samples", token, nil, &posts))
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"post 4", "post 3", "post 1"}, []string{posts[0].Title, posts[1].Title, posts[2].Title})

	_, other := env.createUser(t, "bob")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/ai/samples", other, nil, &posts))
	assert.Empty(t, posts)
}

func TestWritingSamples_SaveListDelete(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.createUser(t, "alice")
	_, bob := env.createUser(t, "bob")

	var saved models.WritingSample
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/ai/samples", alice,
		map[string]string{"title": " Harbour ", "content": "Ropes creaked all night."}, &saved))
	assert.NotZero(t, saved.ID)
	assert.Equal(t, "Harbour", saved.Title)

	var invalid models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/ai/samples", alice,
		map[string]string{"title": "No body"}, &invalid))
	assert.Equal(t, "Content is required", invalid.Error)

	var list []models.WritingSample
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/ai/samples/all", alice, nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/ai/samples/all", bob, nil, &list))
	assert.Empty(t, list)

	path := fmt.Sprintf("/api/ai/samples/%d", saved.ID)
	var missing models.ErrorResponse
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, bob, nil, &missing))
	assert.Equal(t, models.CodeNotFound, missing.Code)

	var msg map[string]string
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, alice, nil, &msg))
	assert.Equal(t, "Sample deleted successfully", msg["message"])
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, alice, nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/api/ai/samples/abc", alice, nil, nil))
}
