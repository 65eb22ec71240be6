package repository

import (
	"context"

	"plume/internal/cache"
	"plume/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository defines persistence operations for tags.
type TagRepository interface {
	List(ctx context.Context) ([]models.Tag, error)
	// GetOrCreate returns one tag per name, creating the missing ones.
	// Names must already be trimmed and non-empty.
	GetOrCreate(ctx context.Context, names []string) ([]models.Tag, error)
}

type tagRepository struct {
	db    *gorm.DB
	cache cache.Store
}

// NewTagRepository returns a TagRepository. The tag list is cached in store,
// which may be nil.
func NewTagRepository(db *gorm.DB, store cache.Store) TagRepository {
	return &tagRepository{db: db, cache: store}
}

func (r *tagRepository) List(ctx context.Context) ([]models.Tag, error) {
	tags := []models.Tag{}
	err := cache.Aside(ctx, r.cache, cache.TagListKey, &tags, cache.TagListTTL, func() error {
		if err := r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) GetOrCreate(ctx context.Context, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	created := false
	for _, name := range names {
		tag, isNew, err := r.getOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		created = created || isNew
		tags = append(tags, *tag)
	}
	if created {
		cache.Invalidate(ctx, r.cache, cache.TagListKey)
	}
	return tags, nil
}

func (r *tagRepository) getOrCreate(ctx context.Context, name string) (*models.Tag, bool, error) {
	db := r.db.WithContext(ctx)
	tag := models.Tag{Name: name, Slug: models.Slugify(name)}

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tag)
	if res.Error != nil {
		return nil, false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 1 {
		return &tag, true, nil
	}

	// Lost to an existing row: same name, or a different name with the same slug.
	var existing models.Tag
	err := db.Where("name = ?", name).Or("slug = ?", tag.Slug).Order("id ASC").First(&existing).Error
	if err != nil {
		return nil, false, models.NewInternalError(err)
	}
	return &existing, false, nil
}
