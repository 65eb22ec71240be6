// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"plume/internal/models"
	"plume/internal/service"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed fixtures.yaml
var defaultFixture []byte

// Fixture is the demo content applied by the seeder.
type Fixture struct {
	Password  string            `yaml:"password"`
	Users     []FixtureUser     `yaml:"users"`
	Tags      []string          `yaml:"tags"`
	Posts     []FixturePost     `yaml:"posts"`
	Comments  []FixtureComment  `yaml:"comments"`
	Reactions []FixtureReaction `yaml:"reactions"`
}

type FixtureUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Staff    bool   `yaml:"staff"`
}

type FixturePost struct {
	Title   string   `yaml:"title"`
	Content string   `yaml:"content"`
	Author  string   `yaml:"author"`
	Tags    []string `yaml:"tags"`
}

type FixtureComment struct {
	Post    string `yaml:"post"`
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

type FixtureReaction struct {
	Post  string `yaml:"post"`
	User  string `yaml:"user"`
	Emoji string `yaml:"emoji"`
}

// Result lists what a run created; existing rows are left untouched.
type Result struct {
	UsersCreated []string
	PostsCreated []string
}

// DefaultFixture parses the embedded demo fixture.
func DefaultFixture() (*Fixture, error) {
	return ParseFixture(defaultFixture)
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if f.Password == "" {
		return nil, errors.New("fixture: password is required")
	}
	return &f, nil
}

// Seeder writes fixtures and generated content.
type Seeder struct {
	db     *gorm.DB
	hasher *service.PasswordHasher
	now    func() time.Time
}

func NewSeeder(db *gorm.DB, hasher *service.PasswordHasher) *Seeder {
	return &Seeder{db: db, hasher: hasher, now: func() time.Time { return time.Now().UTC() }}
}

// Apply get-or-creates every fixture row. Running it twice creates nothing
// the second time.
func (s *Seeder) Apply(ctx context.Context, f *Fixture) (*Result, error) {
	res := &Result{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make(map[string]*models.User, len(f.Users))
		for _, fu := range f.Users {
			user, created, err := s.ensureUser(tx, fu, f.Password)
			if err != nil {
				return err
			}
			users[fu.Username] = user
			if created {
				res.UsersCreated = append(res.UsersCreated, fu.Username)
			}
		}

		tags := make(map[string]models.Tag, len(f.Tags))
		for _, name := range f.Tags {
			tag := models.Tag{Name: name, Slug: models.Slugify(name)}
			if err := tx.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
				return fmt.Errorf("tag %q: %w", name, err)
			}
			tags[name] = tag
		}

		posts := make(map[string]*models.Post, len(f.Posts))
		for _, fp := range f.Posts {
			post, created, err := s.ensurePost(tx, fp, users, tags)
			if err != nil {
				return err
			}
			posts[fp.Title] = post
			if created {
				res.PostsCreated = append(res.PostsCreated, fp.Title)
			}
		}

		for _, fc := range f.Comments {
			post, author, err := lookup(posts, users, fc.Post, fc.Author)
			if err != nil {
				return err
			}
			comment := models.Comment{PostID: post.ID, AuthorID: author.ID, Content: fc.Content}
			if err := tx.Omit("Post", "Author").
				Where(models.Comment{PostID: post.ID, AuthorID: author.ID, Content: fc.Content}).
				FirstOrCreate(&comment).Error; err != nil {
				return fmt.Errorf("comment on %q: %w", fc.Post, err)
			}
		}

		for _, fr := range f.Reactions {
			post, user, err := lookup(posts, users, fr.Post, fr.User)
			if err != nil {
				return err
			}
			emoji, ok := models.ParseEmoji(fr.Emoji)
			if !ok {
				return fmt.Errorf("reaction on %q: unknown emoji %q", fr.Post, fr.Emoji)
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Post", "User").
				Create(&models.Reaction{PostID: post.ID, UserID: user.ID, Emoji: emoji}).Error; err != nil {
				return fmt.Errorf("reaction on %q: %w", fr.Post, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Seeder) ensureUser(tx *gorm.DB, fu FixtureUser, password string) (*models.User, bool, error) {
	var user models.User
	err := tx.Where("username = ?", fu.Username).First(&user).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, err
	}
	user = models.User{
		Username: fu.Username,
		Email:    fu.Email,
		Password: hash,
		IsActive: true,
		IsStaff:  fu.Staff,
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, false, fmt.Errorf("user %q: %w", fu.Username, err)
	}
	return &user, true, nil
}

func (s *Seeder) ensurePost(tx *gorm.DB, fp FixturePost, users map[string]*models.User, tags map[string]models.Tag) (*models.Post, bool, error) {
	var post models.Post
	err := tx.Where("title = ?", fp.Title).First(&post).Error
	if err == nil {
		return &post, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	author, ok := users[fp.Author]
	if !ok {
		return nil, false, fmt.Errorf("post %q: unknown author %q", fp.Title, fp.Author)
	}
	post = models.Post{
		Title:       fp.Title,
		Content:     fp.Content,
		AuthorID:    author.ID,
		PublishedAt: s.now(),
	}
	for _, name := range fp.Tags {
		tag, ok := tags[name]
		if !ok {
			return nil, false, fmt.Errorf("post %q: unknown tag %q", fp.Title, name)
		}
		post.Tags = append(post.Tags, tag)
	}
	if err := tx.Omit("Author", "Tags.*").Create(&post).Error; err != nil {
		return nil, false, fmt.Errorf("post %q: %w", fp.Title, err)
	}
	return &post, true, nil
}

func lookup(posts map[string]*models.Post, users map[string]*models.User, title, username string) (*models.Post, *models.User, error) {
	post, ok := posts[title]
	if !ok {
		return nil, nil, fmt.Errorf("unknown post %q", title)
	}
	user, ok := users[username]
	if !ok {
		return nil, nil, fmt.Errorf("unknown user %q", username)
	}
	return post, user, nil
}

// ClearContent removes posts, comments, reactions and tags, keeping
// accounts.
func (s *Seeder) ClearContent(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"reactions", "comments", "post_tags", "posts", "tags"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}
