package repository

import (
	"context"
	"log/slog"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/search"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	ListByUser(ctx context.Context, authorID uint, includeDrafts bool, limit, offset int, viewerID uint) ([]*models.Post, error)
	ListFollowed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error)
	ListGlobal(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error)
	LatestPublishedByUser(ctx context.Context, authorID uint, limit int) ([]*models.Post, error)
	CountPublishedByUser(ctx context.Context, authorID uint) (int64, error)
	Search(ctx context.Context, q *search.Query, viewerID uint) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	Like(ctx context.Context, userID, postID uint) error
	Unlike(ctx context.Context, userID, postID uint) error
	PopularTags(ctx context.Context, limit int) ([]models.TagCount, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db      *gorm.DB
	rdb     *redis.Client
	tagsTTL time.Duration
}

// NewPostRepository creates a new post repository. rdb may be nil;
// a zero tagsTTL uses cache.PopularTagsTTL.
func NewPostRepository(db *gorm.DB, rdb *redis.Client, tagsTTL time.Duration) PostRepository {
	if tagsTTL <= 0 {
		tagsTTL = cache.PopularTagsTTL
	}
	return &postRepository{db: db, rdb: rdb, tagsTTL: tagsTTL}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return internalError(ctx, "posts", "create", err)
	}
	if post.IsPublished {
		cache.Invalidate(ctx, r.rdb, cache.PopularTagsKey)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := applyPostDetails(r.db.WithContext(ctx), viewerID).
		Preload("User").
		First(&post, id).Error
	if err != nil {
		return nil, wrapLookup(ctx, "getByID", err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) list(ctx context.Context, viewerID uint, limit, offset int, scope func(*gorm.DB) *gorm.DB) ([]*models.Post, error) {
	var posts []*models.Post
	err := applyPostDetails(r.db.WithContext(ctx), viewerID).
		Preload("User").
		Scopes(scope).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, internalError(ctx, "posts", "list", err)
	}
	return posts, nil
}

func published(db *gorm.DB) *gorm.DB {
	return db.Where("posts.is_published = ?", true)
}

func (r *postRepository) ListByUser(ctx context.Context, authorID uint, includeDrafts bool, limit, offset int, viewerID uint) ([]*models.Post, error) {
	return r.list(ctx, viewerID, limit, offset, func(db *gorm.DB) *gorm.DB {
		db = db.Where("posts.user_id = ?", authorID)
		if includeDrafts {
			return db
		}
		return published(db)
	})
}

// ListFollowed returns published posts by authors the viewer follows.
func (r *postRepository) ListFollowed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return r.list(ctx, viewerID, limit, offset, func(db *gorm.DB) *gorm.DB {
		return published(db).Where(
			"posts.user_id IN (SELECT following_id FROM follows WHERE follower_id = ?)", viewerID)
	})
}

func (r *postRepository) ListGlobal(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return r.list(ctx, viewerID, limit, offset, published)
}

func (r *postRepository) LatestPublishedByUser(ctx context.Context, authorID uint, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Scopes(published).
		Where("posts.user_id = ?", authorID).
		Order("posts.created_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, internalError(ctx, "posts", "latestPublishedByUser", err)
	}
	return posts, nil
}

func (r *postRepository) CountPublishedByUser(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Scopes(published).
		Where("posts.user_id = ?", authorID).
		Count(&count).Error
	if err != nil {
		return 0, internalError(ctx, "posts", "countPublishedByUser", err)
	}
	return count, nil
}

// Search runs a built ranking query with the viewer's read-time details.
func (r *postRepository) Search(ctx context.Context, q *search.Query, viewerID uint) ([]*models.Post, error) {
	sel, args := postDetails(viewerID)
	q.Select(sel, args...)

	slog.DebugContext(ctx, "post search", slog.String("intent", string(q.Intent)), slog.String("sql", q.SQL()))

	var posts []*models.Post
	if err := q.Apply(r.db.WithContext(ctx).Model(&models.Post{})).Preload("User").Find(&posts).Error; err != nil {
		return nil, internalError(ctx, "posts", "search", err)
	}
	return posts, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(post).
		Select("title", "content", "tags", "is_published", "updated_at").
		Updates(post).Error
	if err != nil {
		return internalError(ctx, "posts", "update", err)
	}
	cache.Invalidate(ctx, r.rdb, cache.PopularTagsKey)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return internalError(ctx, "posts", "delete", err)
	}
	cache.Invalidate(ctx, r.rdb, cache.PopularTagsKey)
	return nil
}

// Like inserts a like once; repeated calls are no-ops.
func (r *postRepository) Like(ctx context.Context, userID, postID uint) error {
	like := models.Like{UserID: userID, PostID: postID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).
		Create(&like).Error
	if err != nil {
		return internalError(ctx, "posts", "like", err)
	}
	return nil
}

// Unlike removes the like if present.
func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{}).Error
	if err != nil {
		return internalError(ctx, "posts", "unlike", err)
	}
	return nil
}

// PopularTags counts tags across published posts, cached briefly in Redis.
func (r *postRepository) PopularTags(ctx context.Context, limit int) ([]models.TagCount, error) {
	var tags []models.TagCount
	err := cache.Aside(ctx, r.rdb, cache.PopularTagsKey, &tags, r.tagsTTL, func() error {
		return r.db.WithContext(ctx).
			Raw(`SELECT tag, COUNT(*) AS count
				FROM posts, unnest(posts.tags) AS tag
				WHERE posts.is_published = ? AND posts.deleted_at IS NULL
				GROUP BY tag
				ORDER BY count DESC, tag ASC
				LIMIT ?`, true, limit).
			Scan(&tags).Error
	})
	if err != nil {
		return nil, internalError(ctx, "posts", "popularTags", err)
	}
	return tags, nil
}
