// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"plume/internal/database"
	"plume/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewSQLiteDB returns a migrated in-memory database private to the test.
// A single connection is used so every query sees the same memory database.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=1", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// UserOption customizes a user created by CreateUser.
type UserOption func(*models.User)

// Staff marks the user as staff.
func Staff() UserOption {
	return func(u *models.User) { u.IsStaff = true }
}

// Superuser marks the user as staff and superuser.
func Superuser() UserOption {
	return func(u *models.User) {
		u.IsStaff = true
		u.IsSuperuser = true
	}
}

// Inactive disables the account.
func Inactive() UserOption {
	return func(u *models.User) { u.IsActive = false }
}

// WithPassword stores hash as the password column.
func WithPassword(hash string) UserOption {
	return func(u *models.User) { u.Password = hash }
}

// CreateUser inserts an active user named username.
func CreateUser(t testing.TB, db *gorm.DB, username string, opts ...UserOption) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "unusable",
		IsActive: true,
	}
	for _, opt := range opts {
		opt(u)
	}
	active := u.IsActive
	require.NoError(t, db.Create(u).Error)
	if !active {
		// gorm omits false for a column with a default and RETURNING then
		// copies the default back into u.
		require.NoError(t, db.Model(u).Update("is_active", false).Error)
		u.IsActive = false
	}
	return u
}

// CreatePost inserts a post by author published at publishedAt.
func CreatePost(t testing.TB, db *gorm.DB, author *models.User, title string, publishedAt time.Time, tags ...models.Tag) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:       title,
		Content:     "Contenu de " + title,
		AuthorID:    author.ID,
		PublishedAt: publishedAt,
	}
	require.NoError(t, db.Omit("Author", "Tags").Create(p).Error)
	if len(tags) > 0 {
		require.NoError(t, db.Model(p).Association("Tags").Append(tags))
	}
	p.Author = *author
	p.Tags = tags
	return p
}

// CreateTag inserts a tag named name.
func CreateTag(t testing.TB, db *gorm.DB, name string) models.Tag {
	t.Helper()
	tag := models.Tag{Name: name, Slug: models.Slugify(name)}
	require.NoError(t, db.Create(&tag).Error)
	return tag
}
