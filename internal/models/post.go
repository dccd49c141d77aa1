package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Tags is a set-like list of tags stored as a PostgreSQL text[] column.
type Tags []string

// Value encodes the tags as an array literal.
func (t Tags) Value() (driver.Value, error) {
	return pq.StringArray(t).Value()
}

// Scan decodes an array literal.
func (t *Tags) Scan(src interface{}) error {
	return (*pq.StringArray)(t).Scan(src)
}

// GormDBDataType stores tags as text[] on PostgreSQL and as the array literal elsewhere.
func (Tags) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Contains reports whether tag is present.
func (t Tags) Contains(tag string) bool {
	return lo.Contains(t, tag)
}

// Post is an article written by a single author.
type Post struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	User        *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Tags        Tags           `json:"tags"`
	IsPublished bool           `gorm:"not null;index" json:"is_published"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->;-:migration" json:"comments_count"`
	// Liked indicates whether the requesting user liked this post (computed)
	Liked bool `gorm:"->;-:migration" json:"liked"`
	// Relevance is only populated by ranked searches
	Relevance float64        `gorm:"->;-:migration" json:"relevance,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// VisibleTo reports whether viewerID may read the post. Drafts are author-only.
func (p *Post) VisibleTo(viewerID uint) bool {
	return p.IsPublished || (viewerID != 0 && p.UserID == viewerID)
}

// NormalizeTags lower-cases and trims tags, dropping blanks and duplicates.
// Order of first occurrence is kept.
func NormalizeTags(tags []string) Tags {
	cleaned := lo.Map(tags, func(t string, _ int) string {
		return strings.ToLower(strings.TrimSpace(t))
	})
	cleaned = lo.Reject(cleaned, func(t string, _ int) bool { return t == "" })
	return Tags(lo.Uniq(cleaned))
}

// TagCount is a tag with the number of published posts carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}
