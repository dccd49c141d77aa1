package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository stores the directed follow graph.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followingID uint) error
	Unfollow(ctx context.Context, followerID, followingID uint) error
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	Counts(ctx context.Context, userID uint) (followers int64, following int64, err error)
	Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// Follow creates the edge; an existing edge is left untouched.
func (r *followRepository) Follow(ctx context.Context, followerID, followingID uint) error {
	edge := models.Follow{FollowerID: followerID, FollowingID: followingID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "follower_id"}, {Name: "following_id"}},
			DoNothing: true,
		}).
		Create(&edge).Error
	if err != nil {
		return internalError(ctx, "follows", "follow", err)
	}
	return nil
}

func (r *followRepository) Unfollow(ctx context.Context, followerID, followingID uint) error {
	err := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return internalError(ctx, "follows", "unfollow", err)
	}
	return nil
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	if followerID == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, internalError(ctx, "follows", "isFollowing", err)
	}
	return count > 0, nil
}

func (r *followRepository) Counts(ctx context.Context, userID uint) (int64, int64, error) {
	var followers, following int64
	db := r.db.WithContext(ctx).Model(&models.Follow{})
	if err := db.Where("following_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, internalError(ctx, "follows", "counts", err)
	}
	db = r.db.WithContext(ctx).Model(&models.Follow{})
	if err := db.Where("follower_id = ?", userID).Count(&following).Error; err != nil {
		return 0, 0, internalError(ctx, "follows", "counts", err)
	}
	return followers, following, nil
}

func (r *followRepository) Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return r.edgeUsers(ctx, "follows.follower_id", "follows.following_id = ?", userID, limit, offset)
}

func (r *followRepository) Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return r.edgeUsers(ctx, "follows.following_id", "follows.follower_id = ?", userID, limit, offset)
}

func (r *followRepository) edgeUsers(ctx context.Context, joinCol, where string, userID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON users.id = "+joinCol).
		Where(where, userID).
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, internalError(ctx, "follows", "edgeUsers", err)
	}
	return users, nil
}
