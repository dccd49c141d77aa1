package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// WritingSampleRepository stores passages users saved for the writing assistant.
type WritingSampleRepository interface {
	Create(ctx context.Context, sample *models.WritingSample) error
	ListByUser(ctx context.Context, userID uint) ([]models.WritingSample, error)
	Delete(ctx context.Context, userID, id uint) error
}

type writingSampleRepository struct {
	db *gorm.DB
}

func NewWritingSampleRepository(db *gorm.DB) WritingSampleRepository {
	return &writingSampleRepository{db: db}
}

func (r *writingSampleRepository) Create(ctx context.Context, sample *models.WritingSample) error {
	if err := r.db.WithContext(ctx).Create(sample).Error; err != nil {
		return internalError(ctx, "ai_writing_samples", "create", err)
	}
	return nil
}

// ListByUser returns the user's samples, newest first.
func (r *writingSampleRepository) ListByUser(ctx context.Context, userID uint) ([]models.WritingSample, error) {
	samples := []models.WritingSample{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&samples).Error
	if err != nil {
		return nil, internalError(ctx, "ai_writing_samples", "listByUser", err)
	}
	return samples, nil
}

// Delete removes a sample owned by userID. Samples of other users are
// reported as missing.
func (r *writingSampleRepository) Delete(ctx context.Context, userID, id uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.WritingSample{})
	if res.Error != nil {
		return internalError(ctx, "ai_writing_samples", "delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Sample", id)
	}
	return nil
}
