package seed

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T, suffix string) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:seed_%s%s?mode=memory&cache=shared", name, suffix)
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

func smallPreset() Preset {
	return Preset{
		Users:           4,
		PostsPerUser:    3,
		FollowsPerUser:  2,
		LikesPerPost:    2,
		CommentsPerPost: 1,
		Chats:           3,
		MessagesPerChat: 4,
		MaxDays:         10,
		RandomSeed:      7,
		Tags:            []string{"Fiction", "poetry"},
	}
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestParsePreset(t *testing.T) {
	p, err := ParsePreset([]byte("users: 3\ntags: [a, b]\nclean: true\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Users)
	assert.Equal(t, []string{"a", "b"}, p.Tags)
	assert.True(t, p.Clean)
	// untouched fields keep their defaults
	assert.Equal(t, DefaultPreset().PostsPerUser, p.PostsPerUser)

	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "users: [1"},
		{"negative count", "posts_per_user: -1"},
		{"ratio out of range", "draft_ratio: 1.5"},
		{"chats without partners", "users: 1\nchats: 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePreset([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSeed_CreatesConsistentData(t *testing.T) {
	db := setupTestDB(t, "")
	p := smallPreset()

	res, err := Seed(context.Background(), db, p)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Users)
	assert.Equal(t, 12, res.Posts)
	assert.Equal(t, 12, res.Comments)
	assert.Equal(t, 12, res.Messages)
	assert.Equal(t, int64(4), count(t, db, &models.User{}))
	assert.Equal(t, int64(12), count(t, db, &models.Post{}))
	assert.Equal(t, int64(12), count(t, db, &models.Message{}))
	assert.Equal(t, int64(res.Chats), count(t, db, &models.Chat{}))
	assert.Equal(t, int64(res.Likes), count(t, db, &models.Like{}))
	assert.Positive(t, res.Follows)
	assert.LessOrEqual(t, res.Follows, 8)

	var selfFollows int64
	require.NoError(t, db.Model(&models.Follow{}).Where("follower_id = following_id").Count(&selfFollows).Error)
	assert.Zero(t, selfFollows)

	var chats []models.Chat
	require.NoError(t, db.Find(&chats).Error)
	for _, c := range chats {
		assert.Less(t, c.User1ID, c.User2ID)
	}

	// the last two messages of every conversation batch stay unread
	var unread int64
	require.NoError(t, db.Model(&models.Message{}).Where("is_read = ?", false).Count(&unread).Error)
	assert.Equal(t, int64(2*p.Chats), unread)

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	for _, post := range posts {
		for _, tag := range post.Tags {
			assert.Contains(t, []string{"fiction", "poetry"}, tag)
		}
	}

	var user models.User
	require.NoError(t, db.First(&user).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(DefaultPassword)))
}

func TestSeed_AllDraftsGetNoEngagement(t *testing.T) {
	db := setupTestDB(t, "")
	p := smallPreset()
	p.DraftRatio = 1
	p.Chats = 0

	res, err := Seed(context.Background(), db, p)
	require.NoError(t, err)

	assert.Zero(t, res.Comments)
	assert.Zero(t, res.Likes)

	var published int64
	require.NoError(t, db.Model(&models.Post{}).Where("is_published = ?", true).Count(&published).Error)
	assert.Zero(t, published)
}

func TestSeed_SameSeedSameUsers(t *testing.T) {
	usernames := func(db *gorm.DB) []string {
		var names []string
		require.NoError(t, db.Model(&models.User{}).Order("id").Pluck("username", &names).Error)
		return names
	}

	a := setupTestDB(t, "_a")
	b := setupTestDB(t, "_b")
	p := smallPreset()
	p.Chats = 0

	_, err := Seed(context.Background(), a, p)
	require.NoError(t, err)
	_, err = Seed(context.Background(), b, p)
	require.NoError(t, err)

	assert.Equal(t, usernames(a), usernames(b))
}

func TestSeed_CleanReplacesExistingData(t *testing.T) {
	db := setupTestDB(t, "")
	p := smallPreset()

	_, err := Seed(context.Background(), db, p)
	require.NoError(t, err)

	p.Clean = true
	p.Users = 2
	p.Chats = 1
	res, err := Seed(context.Background(), db, p)
	require.NoError(t, err)

	assert.Equal(t, int64(2), count(t, db, &models.User{}))
	assert.Equal(t, int64(res.Posts), count(t, db, &models.Post{}))
	assert.Equal(t, int64(res.Messages), count(t, db, &models.Message{}))
}

func TestFactory_PickSkipsExcluded(t *testing.T) {
	f := NewFactory(nil, 1, 0)
	users := []*models.User{{ID: 1}, {ID: 2}}
	for i := 0; i < 20; i++ {
		assert.Equal(t, uint(2), f.Pick(users, 1).ID)
	}
	assert.Nil(t, f.Pick([]*models.User{{ID: 1}}, 1))
}
