// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Println("schema and search indexes applied")
	case "status":
		migrator := db.WithContext(ctx).Migrator()
		for _, model := range database.PersistentModels() {
			stmt := db.Model(model).Statement
			if err := stmt.Parse(model); err != nil {
				return fmt.Errorf("parse model: %w", err)
			}
			log.Printf("table %-10s present=%t", stmt.Schema.Table, migrator.HasTable(model))
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		missing, err := database.MissingSearchIndexes(ctx, sqlDB)
		if err != nil {
			return fmt.Errorf("index status failed: %w", err)
		}
		log.Printf("missing search indexes: %d %v", len(missing), missing)
	default:
		return usage()
	}

	return nil
}
