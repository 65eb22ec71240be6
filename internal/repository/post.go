package repository

import (
	"context"
	"errors"
	"time"

	"plume/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostQuery filters and pages the published post list.
type PostQuery struct {
	TagSlug string
	Limit   int
	Offset  int
}

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	// ListPublished returns posts with published_at <= now, newest first.
	ListPublished(ctx context.Context, q PostQuery, now time.Time) ([]*models.Post, error)
	ListPublishedByAuthor(ctx context.Context, authorID uint, now time.Time) ([]*models.Post, error)
	// GetByID returns the post with its details whether published or not.
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// Create inserts the post and links post.Tags, which must already exist.
	Create(ctx context.Context, post *models.Post) error
	// Update writes title, content and published_at; tags are replaced with
	// post.Tags only when replaceTags is set.
	Update(ctx context.Context, post *models.Post, replaceTags bool) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a gorm-backed PostRepository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) ListPublished(ctx context.Context, q PostQuery, now time.Time) ([]*models.Post, error) {
	limit, offset := clampPage(q.Limit, q.Offset, 100, 100)

	db := r.db.WithContext(ctx).Where("posts.published_at <= ?", now)
	if q.TagSlug != "" {
		db = db.Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.slug = ?", q.TagSlug)
	}

	posts := []*models.Post{}
	if err := r.applyPostDetails(db).
		Order("posts.published_at DESC, posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, r.attachReactionCounts(ctx, posts)
}

func (r *postRepository) ListPublishedByAuthor(ctx context.Context, authorID uint, now time.Time) ([]*models.Post, error) {
	posts := []*models.Post{}
	if err := r.applyPostDetails(r.db.WithContext(ctx)).
		Where("posts.author_id = ? AND posts.published_at <= ?", authorID, now).
		Order("posts.published_at DESC, posts.id DESC").
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, r.attachReactionCounts(ctx, posts)
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.applyPostDetails(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	if err := r.attachReactionCounts(ctx, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) applyPostDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB {
			return db.Order("tags.name ASC")
		}).
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC, comments.id ASC")
		}).
		Preload("Comments.Author").
		Preload("Reactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("reactions.created_at ASC, reactions.id ASC")
		})
}

func (r *postRepository) attachReactionCounts(ctx context.Context, posts []*models.Post) error {
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	counts, err := reactionCounts(r.db.WithContext(ctx), ids)
	if err != nil {
		return models.NewInternalError(err)
	}
	for _, p := range posts {
		p.ReactionCounts = counts[p.ID]
	}
	return nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		if len(post.Tags) == 0 {
			return nil
		}
		return tx.Model(post).Association("Tags").Replace(post.Tags)
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post, replaceTags bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", post.ID).Updates(map[string]any{
			"title":        post.Title,
			"content":      post.Content,
			"published_at": post.PublishedAt,
			"updated_at":   time.Now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", post.ID)
		}
		if !replaceTags {
			return nil
		}
		assoc := tx.Model(&models.Post{ID: post.ID}).Association("Tags")
		if len(post.Tags) == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(post.Tags)
	})
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}
