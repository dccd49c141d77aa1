package server

import (
	"fmt"
	"net/http"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowAndProfile(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.createUser(t, "alice")
	bob, bobToken := env.createUser(t, "bob")

	follow := fmt.Sprintf("/api/users/follow/%d", bob.ID)
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, follow, aliceToken, nil, nil))
	}

	var self models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, fmt.Sprintf("/api/users/follow/%d", alice.ID), aliceToken, nil, &self))
	assert.Equal(t, "Cannot follow yourself", self.Error)

	var profile models.UserProfile
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/profile/bob", aliceToken, nil, &profile))
	assert.Equal(t, int64(1), profile.FollowersCount)
	assert.True(t, profile.IsFollowing)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/profile/bob", bobToken, nil, &profile))
	assert.False(t, profile.IsFollowing)

	var followers []models.PublicProfile
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/bob/followers", "", nil, &followers))
	require.Len(t, followers, 1)
	assert.Equal(t, "alice", followers[0].Username)

	var following []models.PublicProfile
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/alice/following", "", nil, &following))
	require.Len(t, following, 1)
	assert.Equal(t, bob.ID, following[0].ID)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, follow, aliceToken, nil, nil))
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/profile/bob", "", nil, &profile))
	assert.Zero(t, profile.FollowersCount)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/users/profile/nobody", "", nil, nil))
}

func TestUpdateMyProfile(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "alice")

	var user models.User
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/users/profile", token, map[string]string{
		"display_name":     "Alice A.",
		"theme_preference": "dark",
	}, &user))
	assert.Equal(t, "Alice A.", user.DisplayName)
	assert.Equal(t, "dark", user.ThemePreference)

	var bad models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/users/profile", token, map[string]string{
		"theme_preference": "sepia",
	}, &bad))
	assert.Equal(t, models.CodeValidation, bad.Code)
}

func TestUserPosts_DraftsOnlyForOwner(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := env.createUser(t, "alice")
	_, bobToken := env.createUser(t, "bob")

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/posts", aliceToken, map[string]any{
		"title": "out", "content": "body",
	}, nil))
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/posts", aliceToken, map[string]any{
		"title": "draft", "content": "body", "is_published": false,
	}, nil))

	var posts []models.Post
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/alice/posts", aliceToken, nil, &posts))
	assert.Len(t, posts, 2)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/alice/posts", bobToken, nil, &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "out", posts[0].Title)
}

func TestSearchUsers(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice")
	env.createUser(t, "alfred")
	env.createUser(t, "bob")

	var users []models.PublicProfile
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/search?q=al", "", nil, &users))
	assert.Len(t, users, 2)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/search?q=", "", nil, &users))
	assert.Empty(t, users)
}

func TestAssistantGenerate_FlagOff(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "alice")

	var body models.ErrorResponse
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/ai/generate", token, map[string]string{"plot": "a lighthouse"}, &body))
	assert.Equal(t, models.CodeForbidden, body.Code)
}
