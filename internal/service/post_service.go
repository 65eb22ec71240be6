package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/repository"
	"plume/internal/validation"
)

const (
	// MaxTagNameLength bounds each tag name.
	MaxTagNameLength = 50
	// MaxTitleLength bounds post titles.
	MaxTitleLength = 200
)

// Messages of content operations.
const (
	MsgPostNotFound   = "Post introuvable."
	MsgAuthorNotFound = "Auteur introuvable."
	MsgInvalidEmoji   = "Emoji invalide"
)

// PostService implements reading, writing and reacting to posts.
type PostService struct {
	posts     repository.PostRepository
	tags      repository.TagRepository
	reactions repository.ReactionRepository
	users     repository.UserRepository
	now       func() time.Time
}

// CreatePostInput is the payload of a new post.
type CreatePostInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Content     string     `json:"content" validate:"required"`
	TagNames    []string   `json:"tag_names"`
	PublishedAt *time.Time `json:"published_at"`
}

// UpdatePostInput is a partial update; nil fields are left untouched.
// A nil TagNames keeps the tags, an empty one clears them.
type UpdatePostInput struct {
	Title       *string    `json:"title"`
	Content     *string    `json:"content"`
	TagNames    *[]string  `json:"tag_names"`
	PublishedAt *time.Time `json:"published_at"`
}

// ListPostsInput filters the published list.
type ListPostsInput struct {
	Tag    string
	Limit  int
	Offset int
}

// AuthorProfile is an author with their published posts.
type AuthorProfile struct {
	Author *models.User   `json:"author"`
	Posts  []*models.Post `json:"posts"`
}

func NewPostService(
	posts repository.PostRepository,
	tags repository.TagRepository,
	reactions repository.ReactionRepository,
	users repository.UserRepository,
) *PostService {
	return &PostService{
		posts:     posts,
		tags:      tags,
		reactions: reactions,
		users:     users,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.posts.ListPublished(ctx, repository.PostQuery{
		TagSlug: strings.TrimSpace(in.Tag),
		Limit:   in.Limit,
		Offset:  in.Offset,
	}, s.now())
}

func (s *PostService) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.tags.List(ctx)
}

// GetPost returns a published post. Scheduled posts are reported missing.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, postNotFound(err)
	}
	if !post.IsPublished(s.now()) {
		return nil, &models.AppError{Code: models.CodeNotFound, Message: MsgPostNotFound}
	}
	return post, nil
}

// CreatePost stores a post written by actor, who must be staff.
func (s *PostService) CreatePost(ctx context.Context, actor *models.User, in CreatePostInput) (*models.Post, error) {
	if err := decisionError(CanCreatePost(actor), MsgCreateForbidden); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	names, err := normalizeTagNames(in.TagNames)
	if err != nil {
		return nil, err
	}
	tags, err := s.resolveTags(ctx, names)
	if err != nil {
		return nil, err
	}

	now := s.now()
	post := &models.Post{
		Title:       in.Title,
		Content:     in.Content,
		AuthorID:    actor.ID,
		PublishedAt: now,
		Tags:        tags,
	}
	if in.PublishedAt != nil {
		post.PublishedAt = in.PublishedAt.UTC()
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "post created",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.String("author", actor.Username),
	)
	return s.posts.GetByID(ctx, post.ID)
}

// UpdatePost applies a partial update. Only the author or a superuser may
// edit; unpublished posts are editable.
func (s *PostService) UpdatePost(ctx context.Context, actor *models.User, id uint, in UpdatePostInput) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, postNotFound(err)
	}
	if err := decisionError(CanEditPost(actor, post), MsgUpdateForbidden); err != nil {
		middleware.Logger.WarnContext(ctx, "post update denied",
			slog.Uint64("post_id", uint64(id)),
			slog.Uint64("user_id", uint64(actor.ID)),
		)
		return nil, err
	}

	if in.Title != nil {
		if err := validation.Var("title", *in.Title, fmt.Sprintf("required,max=%d", MaxTitleLength)); err != nil {
			return nil, err
		}
		post.Title = *in.Title
	}
	if in.Content != nil {
		if err := validation.Var("content", *in.Content, "required"); err != nil {
			return nil, err
		}
		post.Content = *in.Content
	}
	if in.PublishedAt != nil {
		post.PublishedAt = in.PublishedAt.UTC()
	}

	replaceTags := in.TagNames != nil
	if replaceTags {
		names, err := normalizeTagNames(*in.TagNames)
		if err != nil {
			return nil, err
		}
		tags, err := s.resolveTags(ctx, names)
		if err != nil {
			return nil, err
		}
		post.Tags = tags
	}

	if err := s.posts.Update(ctx, post, replaceTags); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "post updated",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.String("editor", actor.Username),
	)
	return s.posts.GetByID(ctx, post.ID)
}

// ToggleReaction adds the actor's emoji on a published post or removes it
// if already present, and returns the post with fresh counts.
func (s *PostService) ToggleReaction(ctx context.Context, actor *models.User, postID uint, emoji string) (*models.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	e, ok := models.ParseEmoji(emoji)
	if !ok {
		return nil, models.NewValidationError(MsgInvalidEmoji)
	}
	if _, err := s.reactions.Toggle(ctx, post.ID, actor.ID, e); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, post.ID)
}

// AuthorProfile returns a user and their published posts.
func (s *PostService) AuthorProfile(ctx context.Context, authorID uint) (*AuthorProfile, error) {
	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		if isNotFound(err) {
			return nil, &models.AppError{Code: models.CodeNotFound, Message: MsgAuthorNotFound}
		}
		return nil, err
	}
	posts, err := s.posts.ListPublishedByAuthor(ctx, author.ID, s.now())
	if err != nil {
		return nil, err
	}
	return &AuthorProfile{Author: author, Posts: posts}, nil
}

// normalizeTagNames trims names and drops duplicates, keeping first-seen order.
func normalizeTagNames(raw []string) ([]string, error) {
	names := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, models.NewFieldValidationError("tag_names", "Ce champ ne peut être vide.")
		}
		if utf8.RuneCountInString(name) > MaxTagNameLength {
			return nil, models.NewFieldValidationError("tag_names",
				fmt.Sprintf("Assurez-vous que ce champ comporte au plus %d caractères.", MaxTagNameLength))
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// resolveTags get-or-creates names. Names sharing a slug resolve to one tag.
func (s *PostService) resolveTags(ctx context.Context, names []string) ([]models.Tag, error) {
	tags, err := s.tags.GetOrCreate(ctx, names)
	if err != nil {
		return nil, err
	}
	out := tags[:0]
	seen := make(map[uint]struct{}, len(tags))
	for _, t := range tags {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func postNotFound(err error) error {
	if isNotFound(err) {
		return &models.AppError{Code: models.CodeNotFound, Message: MsgPostNotFound}
	}
	return err
}
