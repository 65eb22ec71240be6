package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"plume/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Factory generates random posts, comments and reactions for local
// development. It is not used by the API.
type Factory struct {
	db      *gorm.DB
	faker   *gofakeit.Faker
	rnd     *rand.Rand
	maxDays int
	now     func() time.Time
}

// NewFactory creates a Factory; equal seeds produce equal content.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	return &Factory{
		db:      db,
		faker:   gofakeit.New(seed),
		rnd:     rand.New(rand.NewSource(seed)),
		maxDays: 90,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// BuildPost constructs an unsaved post by author, published within the
// last maxDays days.
func (f *Factory) BuildPost(author *models.User, tags []models.Tag) *models.Post {
	title := f.faker.Sentence(6)
	if len([]rune(title)) > 200 {
		title = string([]rune(title)[:200])
	}
	post := &models.Post{
		Title:    title,
		Content:  f.faker.Paragraph(3, 4, 12, "\n\n"),
		AuthorID: author.ID,
	}
	back := time.Duration(f.rnd.Intn(f.maxDays*24*60)) * time.Minute
	post.PublishedAt = f.now().Add(-back)

	if len(tags) > 0 {
		for _, i := range f.rnd.Perm(len(tags))[:1+f.rnd.Intn(min(3, len(tags)))] {
			post.Tags = append(post.Tags, tags[i])
		}
	}
	return post
}

// FakePosts creates n posts spread over authors, each with a few comments and
// reactions from readers.
func (f *Factory) FakePosts(ctx context.Context, n int, authors, readers []models.User, tags []models.Tag) ([]*models.Post, error) {
	if n <= 0 {
		return nil, nil
	}
	if len(authors) == 0 {
		return nil, errors.New("seed: at least one author is required")
	}

	posts := make([]*models.Post, 0, n)
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := 0; i < n; i++ {
			post := f.BuildPost(&authors[f.rnd.Intn(len(authors))], tags)
			if err := tx.Omit("Author", "Tags.*").Create(post).Error; err != nil {
				return fmt.Errorf("create post: %w", err)
			}
			if err := f.engage(tx, post, readers); err != nil {
				return err
			}
			posts = append(posts, post)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (f *Factory) engage(tx *gorm.DB, post *models.Post, readers []models.User) error {
	if len(readers) == 0 {
		return nil
	}
	for i := 0; i < f.rnd.Intn(4); i++ {
		reader := readers[f.rnd.Intn(len(readers))]
		comment := &models.Comment{
			PostID:   post.ID,
			AuthorID: reader.ID,
			Content:  f.faker.Sentence(10),
		}
		if err := tx.Omit("Post", "Author").Create(comment).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
	}
	for _, reader := range readers {
		if f.rnd.Intn(3) != 0 {
			continue
		}
		reaction := &models.Reaction{
			PostID: post.ID,
			UserID: reader.ID,
			Emoji:  models.Emojis[f.rnd.Intn(len(models.Emojis))],
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Post", "User").Create(reaction).Error; err != nil {
			return fmt.Errorf("create reaction: %w", err)
		}
	}
	return nil
}
