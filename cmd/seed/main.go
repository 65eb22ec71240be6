// Command seed loads demo content into the database.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"plume/internal/config"
	"plume/internal/database"
	"plume/internal/models"
	"plume/internal/seed"
	"plume/internal/service"
)

func main() {
	fixturePath := flag.String("fixture", "", "YAML fixture to apply instead of the built-in demo content")
	fake := flag.Int("fake", 0, "Number of extra random posts to generate")
	fakeSeed := flag.Int64("fake-seed", time.Now().UnixNano(), "Random seed for generated posts")
	clean := flag.Bool("clean", false, "Delete posts, comments, reactions and tags first")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	hasher, err := service.NewPasswordHasher(cfg.PasswordHashIterations)
	if err != nil {
		log.Fatalf("Invalid password hasher settings: %v", err)
	}

	fixture, err := loadFixture(*fixturePath)
	if err != nil {
		log.Fatalf("Failed to load fixture: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, hasher)
	if *clean {
		if err := s.ClearContent(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		log.Println("Content cleared")
	}

	res, err := s.Apply(ctx, fixture)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	for _, u := range res.UsersCreated {
		log.Printf("created user %s", u)
	}
	for _, p := range res.PostsCreated {
		log.Printf("created post %q", p)
	}

	if *fake > 0 {
		var staff, readers []models.User
		if err := db.Where("is_staff = ?", true).Find(&staff).Error; err != nil {
			log.Fatalf("Failed to load authors: %v", err)
		}
		if err := db.Where("is_active = ?", true).Find(&readers).Error; err != nil {
			log.Fatalf("Failed to load readers: %v", err)
		}
		var tags []models.Tag
		if err := db.Find(&tags).Error; err != nil {
			log.Fatalf("Failed to load tags: %v", err)
		}
		posts, err := seed.NewFactory(db, *fakeSeed).FakePosts(ctx, *fake, staff, readers, tags)
		if err != nil {
			log.Fatalf("Generating posts failed: %v", err)
		}
		log.Printf("generated %d posts", len(posts))
	}

	log.Printf("Done. Demo accounts use the password %q", fixture.Password)
}

func loadFixture(path string) (*seed.Fixture, error) {
	if path == "" {
		return seed.DefaultFixture()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return seed.ParseFixture(raw)
}
