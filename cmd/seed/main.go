// Command seed fills the database with demo users, warbles, follows and likes.
package main

import (
	"flag"
	"log"

	"warbler/internal/auth"
	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	messages := flag.Int("messages", defaults.MessagesPerUser, "Messages per user")
	follows := flag.Int("follows", defaults.FollowsPerUser, "Follows per user")
	likes := flag.Int("likes", defaults.LikesPerUser, "Likes per user")
	randSeed := flag.Int64("rand-seed", 0, "Random seed for reproducible data (0 picks one)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Printf("Target: %d users, %d messages each, clean=%v", *numUsers, *messages, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, auth.NewBcryptHasher(cfg.BcryptCost))
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	opts := defaults
	opts.NumUsers = *numUsers
	opts.MessagesPerUser = *messages
	opts.FollowsPerUser = *follows
	opts.LikesPerUser = *likes
	opts.RandSeed = *randSeed
	opts.ImageURL = cfg.DefaultImageURL
	opts.HeaderImageURL = cfg.DefaultHeaderImageURL

	if _, err := s.Run(opts); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("All test users have the password: %s (log in as \"demo\")", seed.DemoPassword)
}
