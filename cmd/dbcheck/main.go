// Command main verifies database connectivity and the indexes ranked search depends on.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/database"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var tables = []string{"users", "posts", "comments", "likes", "follows", "chats", "messages"}

func main() {
	fix := flag.Bool("fix", false, "Create missing search indexes")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		dsn = database.DSN(cfg)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}
	log.Println("Database reachable")

	for _, table := range tables {
		var n int64
		// table names come from the fixed list above
		if err := db.QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
			log.Printf("%-10s error: %v", table, err)
			continue
		}
		log.Printf("%-10s %d rows", table, n)
	}

	missing, err := database.MissingSearchIndexes(ctx, db)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	if len(missing) == 0 {
		log.Println("All search indexes present")
		return
	}
	log.Printf("Missing search indexes: %v", missing)
	if !*fix {
		os.Exit(1)
	}

	for _, stmt := range database.SearchIndexStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Fatalf("Creating index failed: %v", err)
		}
	}
	log.Println("Search indexes created")
}
