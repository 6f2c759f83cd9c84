// Command main runs the database seeder for Feedline.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"feedline/internal/bootstrap"
	"feedline/internal/config"
	"feedline/internal/database"
	"feedline/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numPosts := flag.Int("posts", 30, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database and images before seeding")
	fixtures := flag.String("fixtures", "", "YAML file with fixed users and posts")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	store, err := bootstrap.NewObjectStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open object store: %v", err)
	}

	ctx := context.Background()
	opts := seed.Options{NumUsers: *numUsers, NumPosts: *numPosts, ShouldClean: *shouldClean}
	s := seed.NewSeeder(db, store, opts)

	log.Printf("Target: %d users, %d posts, clean=%v", *numUsers, *numPosts, *shouldClean)
	users, posts, err := s.Run(ctx, opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	if *fixtures != "" {
		f, err := os.Open(*fixtures)
		if err != nil {
			log.Fatalf("Failed to open fixtures: %v", err)
		}
		fx, err := seed.LoadFixtures(f)
		_ = f.Close()
		if err != nil {
			log.Fatalf("Invalid fixtures: %v", err)
		}
		fixtureUsers, err := s.ApplyFixtures(ctx, fx)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
		log.Printf("Applied %d fixture users from %s", len(fixtureUsers), *fixtures)
	}

	log.Printf("Seeded %d users and %d posts", len(users), len(posts))
	log.Printf("Generated users have the password: %s", seed.DefaultPassword)
}
