package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Search index names. The expressions must stay in sync with the
// field sets ranked by the search package.
const (
	IndexPostsSearch = "idx_posts_search_tsv"
	IndexUsersSearch = "idx_users_search_tsv"
	IndexPostsTags   = "idx_posts_tags_gin"
)

// SearchIndexStatements returns idempotent DDL for the full-text and tag indexes.
func SearchIndexStatements() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS ` + IndexPostsSearch + ` ON posts USING GIN (
			to_tsvector('english', coalesce(title, '') || ' ' || coalesce(content, '')))`,
		`CREATE INDEX IF NOT EXISTS ` + IndexUsersSearch + ` ON users USING GIN (
			to_tsvector('english', coalesce(display_name, '') || ' ' || coalesce(username, '')))`,
		`CREATE INDEX IF NOT EXISTS ` + IndexPostsTags + ` ON posts USING GIN (tags)`,
	}
}

// MissingSearchIndexes lists search indexes absent from the connected database.
func MissingSearchIndexes(ctx context.Context, db *sql.DB) ([]string, error) {
	var missing []string
	for _, name := range []string{IndexPostsSearch, IndexUsersSearch, IndexPostsTags} {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE schemaname = current_schema() AND indexname = $1)`,
			name,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check index %s: %w", name, err)
		}
		if !exists {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
