package seed

import (
	"context"
	"testing"
	"time"

	"plume/internal/models"
	"plume/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_BuildPost(t *testing.T) {
	f := NewFactory(nil, 42)
	author := &models.User{ID: 7}
	tags := []models.Tag{{ID: 1, Name: "Go"}, {ID: 2, Name: "Web"}}

	post := f.BuildPost(author, tags)
	assert.Equal(t, uint(7), post.AuthorID)
	assert.NotEmpty(t, post.Title)
	assert.LessOrEqual(t, len([]rune(post.Title)), 200)
	assert.NotEmpty(t, post.Tags)
	assert.False(t, post.PublishedAt.After(time.Now().UTC()))

	again := NewFactory(nil, 42).BuildPost(author, tags)
	assert.Equal(t, post.Title, again.Title)
}

func TestFactory_FakePosts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	author := testutil.CreateUser(t, db, "writer", testutil.Staff())
	reader := testutil.CreateUser(t, db, "reader")
	tag := models.Tag{Name: "Go", Slug: "go"}
	require.NoError(t, db.Create(&tag).Error)

	posts, err := NewFactory(db, 1).FakePosts(context.Background(), 4,
		[]models.User{*author}, []models.User{*reader}, []models.Tag{tag})
	require.NoError(t, err)
	assert.Len(t, posts, 4)

	var n int64
	require.NoError(t, db.Model(&models.Post{}).Count(&n).Error)
	assert.EqualValues(t, 4, n)
	require.NoError(t, db.Table("post_tags").Count(&n).Error)
	assert.EqualValues(t, 4, n)
}

func TestFactory_FakePostsNeedsAuthor(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	_, err := NewFactory(db, 1).FakePosts(context.Background(), 2, nil, nil, nil)
	assert.Error(t, err)

	posts, err := NewFactory(db, 1).FakePosts(context.Background(), 0, nil, nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, posts)
}
