package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"plume/internal/models"
	"plume/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func tagNames(tags []models.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

func TestPostService_CreatePost(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	svc := newPostService(db)
	ctx := context.Background()
	staff := testutil.CreateUser(t, db, "alice", testutil.Staff())

	post, err := svc.CreatePost(ctx, staff, CreatePostInput{
		Title:    "Premier post",
		Content:  "Bonjour",
		TagNames: []string{" Go ", "DevOps", "Go"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Premier post", post.Title)
	assert.Equal(t, staff.ID, post.Author.ID)
	assert.ElementsMatch(t, []string{"Go", "DevOps"}, tagNames(post.Tags))
	assert.Len(t, post.ReactionCounts, len(models.Emojis))
	assert.WithinDuration(t, time.Now(), post.PublishedAt, time.Minute)

	visible, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, visible.ID)
}

func TestPostService_CreatePostRejects(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	svc := newPostService(db)
	ctx := context.Background()
	reader := testutil.CreateUser(t, db, "reader")
	staff := testutil.CreateUser(t, db, "alice", testutil.Staff())

	_, err := svc.CreatePost(ctx, reader, CreatePostInput{Title: "T", Content: "C"})
	appErr := requireAppError(t, err, models.CodeForbidden)
	assert.Equal(t, MsgCreateForbidden, appErr.Message)

	_, err = svc.CreatePost(ctx, nil, CreatePostInput{Title: "T", Content: "C"})
	requireAppError(t, err, models.CodeForbidden)

	tests := []struct {
		name  string
		in    CreatePostInput
		field string
	}{
		{"missing title", CreatePostInput{Content: "C"}, "title"},
		{"missing content", CreatePostInput{Title: "T"}, "content"},
		{"long title", CreatePostInput{Title: strings.Repeat("t", 201), Content: "C"}, "title"},
		{"blank tag", CreatePostInput{Title: "T", Content: "C", TagNames: []string{"  "}}, "tag_names"},
		{"long tag", CreatePostInput{Title: "T", Content: "C", TagNames: []string{strings.Repeat("x", 51)}}, "tag_names"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, staff, tt.in)
			appErr := requireAppError(t, err, models.CodeValidation)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestPostService_ScheduledPostHidden(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	svc := newPostService(db)
	ctx := context.Background()
	staff := testutil.CreateUser(t, db, "alice", testutil.Staff())

	future := time.Now().UTC().Add(24 * time.Hour)
	post, err := svc.CreatePost(ctx, staff, CreatePostInput{Title: "Plus tard", Content: "C", PublishedAt: &future})
	require.NoError(t, err)

	_, err = svc.GetPost(ctx, post.ID)
	appErr := requireAppError(t, err, models.CodeNotFound)
	assert.Equal(t, MsgPostNotFound, appErr.Message)

	list, err := svc.ListPosts(ctx, ListPostsInput{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// Authors can still edit a scheduled post.
	_, err = svc.UpdatePost(ctx, staff, post.ID, UpdatePostInput{Title: strPtr("Toujours plus tard")})
	require.NoError(t, err)
}

func TestPostService_UpdatePostAuthorization(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	svc := newPostService(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "alice", testutil.Staff())
	otherStaff := testutil.CreateUser(t, db, "bruno", testutil.Staff())
	root := testutil.CreateUser(t, db, "root", testutil.Superuser())
	post := testutil.CreatePost(t, db, author, "Original", time.Now().UTC().Add(-time.Hour))

	_, err := svc.UpdatePost(ctx, otherStaff, post.ID, UpdatePostInput{Title: strPtr("Volé")})
	appErr := requireAppError(t, err, models.CodeForbidden)
	assert.Equal(t, "Vous n’êtes pas autorisé à modifier ce post.", appErr.Message)

	updated, err := svc.UpdatePost(ctx, root, post.ID, UpdatePostInput{Title: strPtr("Corrigé")})
	require.NoError(t, err)
	assert.Equal(t, "Corrigé", updated.Title)
	assert.Equal(t, author.ID, updated.Author.ID, "editing does not change the author")

	updated, err = svc.UpdatePost(ctx, author, post.ID, UpdatePostInput{Content: strPtr("Nouveau contenu")})
	require.NoError(t, err)
	assert.Equal(t, "Corrigé", updated.Title)
	assert.Equal(t, "Nouveau contenu", updated.Content)

	_, err = svc.UpdatePost(ctx, author, 9999, UpdatePostInput{Title: strPtr("x")})
	requireAppError(t, err, models.CodeNotFound)

	_, err = svc.UpdatePost(ctx, author, post.ID, UpdatePostInput{Title: strPtr("")})
	requireAppError(t, err, models.CodeValidation)
}

func TestPostService_UpdatePostTags(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	svc := newPostService(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "alice", testutil.Staff())
	tag := testutil.CreateTag(t, db, "Django")
	post := testutil.CreatePost(t, db, author, "Tagged", time.Now().UTC().Add(-time.Hour), tag)

	updated, err := svc.UpdatePost(ctx, author, post.ID, UpdatePostInput{Title: strPtr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Django"}, tagNames(updated.Tags), "omitted tag_names keeps tags")

	names := []string{"React", "UX"}
	updated, err = svc.UpdatePost(ctx, author, post.ID, UpdatePostInput{TagNames: &names})
	require.NoError(t, err)
	assert.ElementsMatch(t, names, tagNames(updated.Tags))

	empty := []string{}
	updated, err = svc.UpdatePost(ctx, author, post.ID, UpdatePostInput{TagNames: &empty})
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)

	tags, err := svc.ListTags(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Django", "React", "UX"}, tagNames(tags))
}

func TestPostService_ListPostsByTag(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	svc := newPostService(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "alice", testutil.Staff())
	devops := testutil.CreateTag(t, db, "Dev Ops")
	past := time.Now().UTC().Add(-time.Hour)
	testutil.CreatePost(t, db, author, "Tagged", past, devops)
	testutil.CreatePost(t, db, author, "Untagged", past.Add(time.Minute))

	all, err := svc.ListPosts(ctx, ListPostsInput{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Untagged", all[0].Title, "newest first")

	tagged, err := svc.ListPosts(ctx, ListPostsInput{Tag: "dev-ops"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "Tagged", tagged[0].Title)
}

func TestPostService_ToggleReactionIsInvolution(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	svc := newPostService(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "alice", testutil.Staff())
	reader := testutil.CreateUser(t, db, "reader")
	post := testutil.CreatePost(t, db, author, "Réagir", time.Now().UTC().Add(-time.Hour))

	got, err := svc.ToggleReaction(ctx, reader, post.ID, "LIKE")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ReactionCounts["LIKE"])
	assert.EqualValues(t, 0, got.ReactionCounts["LOVE"])
	require.Len(t, got.Reactions, 1)

	got, err = svc.ToggleReaction(ctx, reader, post.ID, "LIKE")
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.ReactionCounts["LIKE"])
	assert.Empty(t, got.Reactions)

	_, err = svc.ToggleReaction(ctx, reader, post.ID, "like")
	appErr := requireAppError(t, err, models.CodeValidation)
	assert.Equal(t, MsgInvalidEmoji, appErr.Message)

	scheduled := testutil.CreatePost(t, db, author, "Futur", time.Now().UTC().Add(time.Hour))
	_, err = svc.ToggleReaction(ctx, reader, scheduled.ID, "LIKE")
	requireAppError(t, err, models.CodeNotFound)
}

func TestPostService_AuthorProfile(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	svc := newPostService(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "alice", testutil.Staff())
	testutil.CreatePost(t, db, author, "Publié", time.Now().UTC().Add(-time.Hour))
	testutil.CreatePost(t, db, author, "Brouillon", time.Now().UTC().Add(time.Hour))

	profile, err := svc.AuthorProfile(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Author.Username)
	require.Len(t, profile.Posts, 1)
	assert.Equal(t, "Publié", profile.Posts[0].Title)

	_, err = svc.AuthorProfile(ctx, 9999)
	appErr := requireAppError(t, err, models.CodeNotFound)
	assert.Equal(t, MsgAuthorNotFound, appErr.Message)
}
