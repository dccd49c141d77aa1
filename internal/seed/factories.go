// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"inkwell/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password every seeded account logs in with.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db       *gorm.DB
	fake     *gofakeit.Faker
	maxDays  int
	password string
	seq      int
}

// NewFactory creates a Factory bound to db. A non-zero randSeed makes the
// generated content reproducible.
func NewFactory(db *gorm.DB, randSeed int64, maxDays int) *Factory {
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	if maxDays <= 0 {
		maxDays = 90
	}
	return &Factory{db: db, fake: gofakeit.New(randSeed), maxDays: maxDays}
}

// hashedPassword hashes DefaultPassword once per factory.
func (f *Factory) hashedPassword() (string, error) {
	if f.password != "" {
		return f.password, nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	f.password = string(h)
	return f.password, nil
}

// pastTime spreads timestamps over the configured window.
func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.fake.Number(0, f.maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

// CreateUser constructs and persists a user. Overrides run before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	password, err := f.hashedPassword()
	if err != nil {
		return nil, err
	}
	f.seq++
	first, last := f.fake.FirstName(), f.fake.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, f.seq))

	user := &models.User{
		Username:        username,
		Email:           username + "@inkwell.test",
		DisplayName:     first + " " + last,
		Bio:             f.fake.Sentence(10),
		ProfileImage:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.fake.UUID()),
		ThemePreference: models.ThemeLight,
		Password:        password,
	}
	if f.fake.Bool() {
		user.ThemePreference = models.ThemeDark
	}

	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post without persisting it, for batching.
func (f *Factory) BuildPost(user *models.User, tagPool []string, overrides ...func(*models.Post)) *models.Post {
	created := f.pastTime()
	post := &models.Post{
		UserID:      user.ID,
		Title:       strings.TrimSuffix(f.fake.Sentence(f.fake.Number(3, 7)), "."),
		Content:     f.fake.Paragraph(f.fake.Number(2, 4), f.fake.Number(3, 6), 12, "\n\n"),
		Tags:        models.NormalizeTags(f.pickTags(tagPool)),
		IsPublished: true,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

func (f *Factory) pickTags(pool []string) []string {
	if len(pool) == 0 {
		return nil
	}
	n := f.fake.Number(0, min(3, len(pool)))
	tags := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tags = append(tags, f.fake.RandomString(pool))
	}
	return tags
}

// CreatePostsBatch persists posts in one statement.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.CreateInBatches(posts, 100).Error
}

// CreateComment persists a comment by user on post.
func (f *Factory) CreateComment(user *models.User, post *models.Post) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:  post.ID,
		UserID:  user.ID,
		Content: f.fake.Sentence(f.fake.Number(4, 14)),
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like. An existing like is left alone.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{UserID: user.ID, PostID: post.ID}).Error
}

// CreateFollow makes follower follow target. Self-follows are skipped.
func (f *Factory) CreateFollow(follower, target *models.User) error {
	if follower.ID == target.ID {
		return nil
	}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: follower.ID, FollowingID: target.ID}).Error
}

// CreateChat returns the chat between a and b, creating it when missing.
func (f *Factory) CreateChat(a, b *models.User) (*models.Chat, error) {
	u1, u2 := models.NormalizePair(a.ID, b.ID)
	chat := &models.Chat{}
	err := f.db.Where(models.Chat{User1ID: u1, User2ID: u2}).
		FirstOrCreate(chat, models.Chat{User1ID: u1, User2ID: u2}).Error
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// CreateMessage persists a message from sender in chat.
func (f *Factory) CreateMessage(chat *models.Chat, sender *models.User, read bool) (*models.Message, error) {
	msg := &models.Message{
		ChatID:   chat.ID,
		SenderID: sender.ID,
		Content:  f.fake.Sentence(f.fake.Number(3, 16)),
		IsRead:   read,
	}
	if err := f.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// Pick returns a random element of users other than except.
func (f *Factory) Pick(users []*models.User, except uint) *models.User {
	for i := 0; i < 8; i++ {
		u := users[f.fake.Number(0, len(users)-1)]
		if u.ID != except {
			return u
		}
	}
	for _, u := range users {
		if u.ID != except {
			return u
		}
	}
	return nil
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	return f.fake.Float64Range(0, 1) < p
}
