package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:             "test-secret",
		Port:                  "0",
		AllowedOrigins:        "http://localhost:5173",
		FeatureFlags:          "ai_assistant=off,search_fulltext=off",
		Env:                   "test",
		FeedSessionTTLSeconds: 60,
		SearchMaxLimit:        50,
		WSSendBuffer:          64,
		WSRateLimitPerMinute:  120,
		WSTicketTTLSeconds:    60,
		PopularTagsTTLSeconds: 300,
		AssistantBaseURL:      "http://127.0.0.1:1",
		AssistantModel:        "llama3",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:srv_%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	srv, err := NewServer(testConfig(), db, rdb)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = rdb.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &testEnv{srv: srv, app: srv.App(), db: db, mr: mr}
}

func (e *testEnv) createUser(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	u := &models.User{
		Username:        username,
		Email:           username + "@example.com",
		DisplayName:     strings.ToUpper(username[:1]) + username[1:],
		ThemePreference: models.ThemeLight,
	}
	require.NoError(t, e.db.Create(u).Error)
	token, err := e.srv.auth.IssueToken(u.ID, u.Username)
	require.NoError(t, err)
	return u, token
}

// do sends a JSON request and decodes the response body into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	var live map[string]any
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "", nil, &live))
	assert.Equal(t, "up", live["status"])

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["redis"])

	env.mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "unhealthy", ready.Checks["redis"])
}

func TestFeatureFlags_Snapshot(t *testing.T) {
	env := newTestEnv(t)

	var flags map[string]bool
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/feature-flags", "", nil, &flags))
	assert.False(t, flags["ai_assistant"])
	assert.False(t, flags["search_fulltext"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/health/live", "", nil, nil)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users/me"},
		{http.MethodGet, "/api/feed"},
		{http.MethodGet, "/api/chats"},
		{http.MethodPost, "/api/posts"},
		{http.MethodPost, "/api/ai/generate"},
		{http.MethodGet, "/api/ai/samples/all"},
		{http.MethodPost, "/api/ws/ticket"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			var body models.ErrorResponse
			assert.Equal(t, http.StatusUnauthorized, env.do(t, r.method, r.path, "", nil, &body))
			assert.Equal(t, models.CodeUnauthorized, body.Code)
		})
	}
}
