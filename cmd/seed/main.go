// Command main runs the database seeder for Inkwell.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	presetPath := flag.String("preset", "", "Path to a YAML seed preset (defaults are used when empty)")
	shouldClean := flag.Bool("clean", false, "Truncate content tables before seeding")
	timeout := flag.Duration("timeout", 10*time.Minute, "Abort seeding after this long")
	flag.Parse()

	preset := seed.DefaultPreset()
	if *presetPath != "" {
		p, err := seed.LoadPreset(*presetPath)
		if err != nil {
			log.Fatalf("Failed to load preset: %v", err)
		}
		preset = p
	}
	if *shouldClean {
		preset.Clean = true
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	res, err := seed.Seed(ctx, db, preset)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d posts, %d chats", res.Users, res.Posts, res.Chats)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
