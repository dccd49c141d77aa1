package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/notifications"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:        username,
		Email:           username + "@example.com",
		DisplayName:     strings.ToUpper(username[:1]) + username[1:],
		ThemePreference: models.ThemeLight,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createPost(t *testing.T, db *gorm.DB, author *models.User, title string, published bool) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:      author.ID,
		Title:       title,
		Content:     "content of " + title,
		Tags:        models.Tags{"go"},
		IsPublished: published,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

type published struct {
	Channel string
	Event   string
	Payload any
}

// recordingBroadcaster captures publishes without delivering them.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingBroadcaster) Attach(string, notifications.Sink) {}

func (r *recordingBroadcaster) Detach(string) {}

func (r *recordingBroadcaster) Subscribe(string, string) {}

func (r *recordingBroadcaster) Unsubscribe(string, string) {}

func (r *recordingBroadcaster) Publish(_ context.Context, channel, event string, payload any, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{Channel: channel, Event: event, Payload: payload})
	return nil
}

func (r *recordingBroadcaster) ofEvent(event string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
