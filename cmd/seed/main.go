// Command seed fills the snapfeed database with demo snaps.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"snapfeed/internal/config"
	"snapfeed/internal/database"
	"snapfeed/internal/models"
	"snapfeed/internal/repository"
	"snapfeed/internal/seed"
	"snapfeed/internal/service"

	"gorm.io/gorm"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to generate")
	numSnaps := flag.Int("snaps", 100, "Number of top-level snaps to generate")
	fixture := flag.String("fixture", "", "Load snaps from a YAML fixture instead of generating them")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for generated data")
	shouldClean := flag.Bool("clean", false, "Remove all snaps before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *shouldClean {
		all := database.PersistentModels()
		for i := len(all) - 1; i >= 0; i-- {
			if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(all[i]).Error; err != nil {
				log.Fatalf("Cleanup failed: %v", err)
			}
		}
		log.Println("Removed existing snaps")
	}

	var f *seed.Fixture
	if *fixture != "" {
		file, err := os.Open(*fixture)
		if err != nil {
			log.Fatalf("Failed to open fixture: %v", err)
		}
		f, err = seed.LoadFixture(file)
		_ = file.Close()
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
	} else {
		log.Printf("Generating %d users and %d snaps (seed %d)", *numUsers, *numSnaps, *randSeed)
		f = seed.Generate(*randSeed, *numUsers, *numSnaps)
	}

	repo := repository.NewPostRepository(db)
	feed := service.NewFeedService(repo, nil, cfg.FeedDefaultLimit)
	s := seed.NewSeeder(feed,
		service.NewLikeService(repo, feed),
		service.NewShareService(repo, feed),
		service.NewReplyService(repo, feed),
	)

	res, err := s.Apply(context.Background(), f)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Done: %d snaps, %d replies, %d likes, %d shares", res.Snaps, res.Replies, res.Likes, res.Shares)

	var count int64
	db.Model(&models.Post{}).Count(&count)
	log.Printf("Store now holds %d posts", count)
}
