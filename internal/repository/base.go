// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// postDetailsColumns computes read-time aggregates for each post row.
const postDetailsColumns = "posts.*, " +
	"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count, " +
	"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count"

// postDetails returns the projection with counts and the viewer's like flag.
func postDetails(viewerID uint) (string, []any) {
	if viewerID != 0 {
		return postDetailsColumns +
			", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked", []any{viewerID}
	}
	return postDetailsColumns + ", false AS liked", nil
}

// applyPostDetails adds subqueries to fetch counts and liked status in a single query.
func applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	sel, args := postDetails(viewerID)
	return db.Select(sel, args...)
}

// wrapLookup maps a missing row to NOT_FOUND and logs anything else.
func wrapLookup(ctx context.Context, op string, err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return internalError(ctx, strings.ToLower(resource)+"s", op, err)
}

func internalError(ctx context.Context, table, op string, err error) error {
	observability.NewRepoLogger(table).LogError(ctx, err, op)
	return models.NewInternalError(err)
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
