// Package bootstrap wires the process-wide database and Redis connections.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// Migrate forces schema migration even in production.
	Migrate bool
	// RequireRedis fails startup when Redis is unreachable.
	RequireRedis bool
}

// InitRuntime connects to the database and Redis. Redis is optional unless
// opts.RequireRedis is set; without it the process runs single-node.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.Migrate && cfg.IsProduction() {
		if err := database.Migrate(context.Background(), db); err != nil {
			return nil, nil, err
		}
	}

	if err := checkSearchIndexes(db); err != nil {
		return nil, nil, err
	}

	r := cache.InitRedis(cfg.RedisURL)
	if r == nil && opts.RequireRedis {
		return nil, nil, fmt.Errorf("redis unavailable at %s", cfg.RedisURL)
	}

	return db, r, nil
}

func checkSearchIndexes(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	missing, err := database.MissingSearchIndexes(context.Background(), sqlDB)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		slog.Warn("search indexes missing, ranked search will fall back to sequential scans", "indexes", missing)
	}
	return nil
}
