package repository

import (
	"context"
	"testing"
	"time"

	"plume/internal/cache"
	"plume/internal/models"
	"plume/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionRepository_ToggleIsInvolution(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", testutil.Staff())
	bruno := testutil.CreateUser(t, db, "bruno")
	post := testutil.CreatePost(t, db, alice, "Post", time.Now().UTC())

	added, err := repo.Toggle(ctx, post.ID, bruno.ID, models.EmojiLike)
	require.NoError(t, err)
	assert.True(t, added)

	counts, err := repo.Counts(ctx, []uint{post.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[post.ID]["LIKE"])
	assert.Equal(t, int64(0), counts[post.ID]["ANGRY"])

	added, err = repo.Toggle(ctx, post.ID, bruno.ID, models.EmojiLike)
	require.NoError(t, err)
	assert.False(t, added)

	counts, err = repo.Counts(ctx, []uint{post.ID})
	require.NoError(t, err)
	assert.Equal(t, models.EmptyReactionCounts(), counts[post.ID])
}

func TestReactionRepository_DistinctEmojisCoexist(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", testutil.Staff())
	post := testutil.CreatePost(t, db, alice, "Post", time.Now().UTC())

	for _, e := range []models.Emoji{models.EmojiLove, models.EmojiWow} {
		_, err := repo.Toggle(ctx, post.ID, alice.ID, e)
		require.NoError(t, err)
	}

	counts, err := repo.Counts(ctx, []uint{post.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[post.ID]["LOVE"])
	assert.Equal(t, int64(1), counts[post.ID]["WOW"])
}

func TestCommentRepository_ListByPostPaginates(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", testutil.Staff())
	post := testutil.CreatePost(t, db, alice, "Post", time.Now().UTC())

	for i := 0; i < 7; i++ {
		c := &models.Comment{Content: string(rune('a' + i)), PostID: post.ID, AuthorID: alice.ID}
		require.NoError(t, repo.Create(ctx, c))
		assert.Equal(t, "alice", c.Author.Username)
	}

	page, total, err := repo.ListByPost(ctx, post.ID, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	require.Len(t, page, 5)
	assert.Equal(t, "a", page[0].Content)

	page, _, err = repo.ListByPost(ctx, post.ID, 5, 5)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "g", page[1].Content)
}

func TestTagRepository_GetOrCreate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	store := cache.NewLocalStore(10)
	repo := NewTagRepository(db, store)
	ctx := context.Background()

	existing := testutil.CreateTag(t, db, "Django")

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	tags, err := repo.GetOrCreate(ctx, []string{"Django", "Machine Learning"})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, existing.ID, tags[0].ID)
	assert.Equal(t, "machine-learning", tags[1].Slug)

	listed, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2, "creating a tag invalidates the cached list")

	t.Run("slug collision reuses the existing tag", func(t *testing.T) {
		tags, err := repo.GetOrCreate(ctx, []string{"machine learning"})
		require.NoError(t, err)
		require.Len(t, tags, 1)
		assert.Equal(t, "Machine Learning", tags[0].Name)
	})
}

func TestTagRepository_ListServedFromCache(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	store := cache.NewLocalStore(10)
	repo := NewTagRepository(db, store)
	ctx := context.Background()

	testutil.CreateTag(t, db, "Data")
	_, err := repo.List(ctx)
	require.NoError(t, err)

	// Written behind the repository's back: the cached list is still served.
	testutil.CreateTag(t, db, "UX")
	listed, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
