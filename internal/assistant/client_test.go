package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL + "/", Model: "llama3", Timeout: 5 * time.Second})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGenerateSendsNonStreamingRequest(t *testing.T) {
	var got generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, generatePath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"Once upon a time","done":true}`))
	})

	out, err := c.Generate(context.Background(), "write something")
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time", out)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "write something", got.Prompt)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.7, got.Options.Temperature, 1e-9)
}

func TestGenerateProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	})

	_, err := c.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
	assert.Contains(t, err.Error(), "404")
}

func TestGenerateUnreachableProvider(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: addr, Model: "llama3", Timeout: time.Second})
	defer func() { _ = c.Close() }()

	_, err := c.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, models.CodeUnavailable, models.ErrorCode(err))
	assert.Equal(t, http.StatusServiceUnavailable, models.StatusFor(err))
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tagsPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","size":42}]}`))
	})

	st := c.Status(context.Background())
	assert.Equal(t, StatusConnected, st.Status)
	require.Len(t, st.Models, 1)
	assert.Equal(t, "llama3:latest", st.Models[0].Name)

	down := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	st = down.Status(context.Background())
	assert.Equal(t, StatusDisconnected, st.Status)
	assert.NotEmpty(t, st.Error)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("a lighthouse keeper", []Sample{
		{Title: "Tides", Content: "The sea was grey."},
		{Title: "Gulls", Content: "They never stop."},
	})

	assert.Contains(t, p, "Sample 1 - Tides:\nThe sea was grey.")
	assert.Contains(t, p, "Sample 2 - Gulls:\nThey never stop.")
	assert.Contains(t, p, "New Plot/Idea: a lighthouse keeper")

	empty := BuildPrompt("x", nil)
	assert.NotContains(t, empty, "Sample 1")
}
