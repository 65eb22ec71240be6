package service

import (
	"context"
	"log/slog"

	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/repository"
	"plume/internal/validation"
)

// Comment paging bounds.
const (
	DefaultCommentPageSize = 5
	MaxCommentPageSize     = 100
)

// MsgInvalidPage is returned for pages past the last one.
const MsgInvalidPage = "Page non valide."

type CommentService struct {
	comments repository.CommentRepository
	posts    *PostService
}

// CreateCommentInput is the payload of a new comment.
type CreateCommentInput struct {
	Content string `json:"content" validate:"required"`
}

// CommentPage is one page of a post's comments.
type CommentPage struct {
	Count    int64
	Page     int
	PageSize int
	Results  []*models.Comment
}

// HasNext reports whether a page follows this one.
func (p *CommentPage) HasNext() bool {
	return int64(p.Page*p.PageSize) < p.Count
}

// HasPrevious reports whether a page precedes this one.
func (p *CommentPage) HasPrevious() bool {
	return p.Page > 1
}

func NewCommentService(comments repository.CommentRepository, posts *PostService) *CommentService {
	return &CommentService{comments: comments, posts: posts}
}

// CreateComment adds actor's comment on a published post.
func (s *CommentService) CreateComment(ctx context.Context, actor *models.User, postID uint, in CreateCommentInput) (*models.Comment, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content:  in.Content,
		PostID:   post.ID,
		AuthorID: actor.ID,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "comment created",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.Uint64("comment_id", uint64(comment.ID)),
	)
	return comment, nil
}

// ListComments pages a published post's comments, oldest first. Page numbers
// start at 1; pageSize defaults to 5 and is capped at 100.
func (s *CommentService) ListComments(ctx context.Context, postID uint, page, pageSize int) (*CommentPage, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultCommentPageSize
	}
	if pageSize > MaxCommentPageSize {
		pageSize = MaxCommentPageSize
	}

	comments, total, err := s.comments.ListByPost(ctx, post.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	if page > 1 && len(comments) == 0 {
		return nil, &models.AppError{Code: models.CodeNotFound, Message: MsgInvalidPage}
	}
	return &CommentPage{Count: total, Page: page, PageSize: pageSize, Results: comments}, nil
}
