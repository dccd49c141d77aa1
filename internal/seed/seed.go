package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"inkwell/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Preset describes how much demo data to create.
type Preset struct {
	Users           int      `yaml:"users"`
	PostsPerUser    int      `yaml:"posts_per_user"`
	DraftRatio      float64  `yaml:"draft_ratio"`
	FollowsPerUser  int      `yaml:"follows_per_user"`
	LikesPerPost    int      `yaml:"likes_per_post"`
	CommentsPerPost int      `yaml:"comments_per_post"`
	Chats           int      `yaml:"chats"`
	MessagesPerChat int      `yaml:"messages_per_chat"`
	MaxDays         int      `yaml:"max_days"`
	RandomSeed      int64    `yaml:"random_seed"`
	Tags            []string `yaml:"tags"`
	Clean           bool     `yaml:"clean"`
}

// DefaultPreset is used when no preset file is given.
func DefaultPreset() Preset {
	return Preset{
		Users:           20,
		PostsPerUser:    5,
		DraftRatio:      0.1,
		FollowsPerUser:  4,
		LikesPerPost:    3,
		CommentsPerPost: 2,
		Chats:           10,
		MessagesPerChat: 6,
		MaxDays:         90,
		Tags:            []string{"fiction", "poetry", "essay", "travel", "memoir", "fantasy", "noir", "craft"},
	}
}

// ParsePreset decodes YAML over the defaults, so a file only lists what it changes.
func ParsePreset(data []byte) (Preset, error) {
	p := DefaultPreset()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("parse preset: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}

// LoadPreset reads a preset file.
func LoadPreset(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("read preset: %w", err)
	}
	return ParsePreset(data)
}

func (p Preset) Validate() error {
	switch {
	case p.Users < 0 || p.PostsPerUser < 0 || p.FollowsPerUser < 0 || p.LikesPerPost < 0 ||
		p.CommentsPerPost < 0 || p.Chats < 0 || p.MessagesPerChat < 0:
		return fmt.Errorf("preset counts must not be negative")
	case p.DraftRatio < 0 || p.DraftRatio > 1:
		return fmt.Errorf("draft_ratio must be between 0 and 1")
	case p.Chats > 0 && p.Users < 2:
		return fmt.Errorf("chats need at least two users")
	}
	return nil
}

// Result counts what Seed created.
type Result struct {
	Users    int
	Posts    int
	Follows  int
	Likes    int
	Comments int
	Chats    int
	Messages int
}

// Seed populates the database according to p.
func Seed(ctx context.Context, db *gorm.DB, p Preset) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	db = db.WithContext(ctx)
	slog.Info("seeding database", "users", p.Users, "posts_per_user", p.PostsPerUser)

	if p.Clean {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	f := NewFactory(db, p.RandomSeed, p.MaxDays)
	res := &Result{}

	users := make([]*models.User, 0, p.Users)
	for i := 0; i < p.Users; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return res, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	res.Users = len(users)
	if len(users) == 0 {
		return res, nil
	}

	if len(users) > 1 {
		for _, u := range users {
			for i := 0; i < p.FollowsPerUser; i++ {
				if err := f.CreateFollow(u, f.Pick(users, u.ID)); err != nil {
					return res, fmt.Errorf("create follow: %w", err)
				}
			}
		}
		var follows int64
		if err := db.Model(&models.Follow{}).Count(&follows).Error; err != nil {
			return res, err
		}
		res.Follows = int(follows)
	}

	var posts []*models.Post
	for _, u := range users {
		for i := 0; i < p.PostsPerUser; i++ {
			posts = append(posts, f.BuildPost(u, p.Tags, func(post *models.Post) {
				post.IsPublished = !f.Chance(p.DraftRatio)
			}))
		}
	}
	if err := f.CreatePostsBatch(posts); err != nil {
		return res, fmt.Errorf("create posts: %w", err)
	}
	res.Posts = len(posts)

	for _, post := range posts {
		if !post.IsPublished {
			continue
		}
		for i := 0; i < p.LikesPerPost && len(users) > 1; i++ {
			if err := f.CreateLike(f.Pick(users, post.UserID), post); err != nil {
				return res, fmt.Errorf("create like: %w", err)
			}
		}
		for i := 0; i < p.CommentsPerPost; i++ {
			if _, err := f.CreateComment(f.Pick(users, 0), post); err != nil {
				return res, fmt.Errorf("create comment: %w", err)
			}
			res.Comments++
		}
	}
	var likes int64
	if err := db.Model(&models.Like{}).Count(&likes).Error; err != nil {
		return res, err
	}
	res.Likes = int(likes)

	chats := map[uint]bool{}
	for i := 0; i < p.Chats; i++ {
		a := users[i%len(users)]
		chat, err := f.CreateChat(a, f.Pick(users, a.ID))
		if err != nil {
			return res, fmt.Errorf("create chat: %w", err)
		}
		chats[chat.ID] = true
		for j := 0; j < p.MessagesPerChat; j++ {
			sender := a
			if j%2 == 1 {
				sender = &models.User{ID: chat.OtherParticipant(a.ID)}
			}
			// everything but the tail of each chat has been read
			if _, err := f.CreateMessage(chat, sender, j < p.MessagesPerChat-2); err != nil {
				return res, fmt.Errorf("create message: %w", err)
			}
			res.Messages++
		}
	}
	res.Chats = len(chats)

	slog.Info("seeding complete",
		"users", res.Users, "posts", res.Posts, "follows", res.Follows,
		"likes", res.Likes, "comments", res.Comments, "chats", res.Chats, "messages", res.Messages)
	return res, nil
}

var seededTables = []string{"ai_writing_samples", "messages", "chats", "comments", "likes", "follows", "posts", "users"}

func clearData(db *gorm.DB) error {
	slog.Info("clearing existing data")
	if db.Dialector.Name() == "postgres" {
		return db.Exec("TRUNCATE TABLE " + strings.Join(seededTables, ", ") + " RESTART IDENTITY CASCADE").Error
	}
	for _, table := range seededTables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
