package server

import (
	"fmt"

	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CommentPageResponse is one page of comments with links to its neighbours.
type CommentPageResponse struct {
	Count    int64             `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []*models.Comment `json:"results"`
}

// GetComments paginates a post's comments
// @Summary List comments
// @Description Oldest first, five per page by default
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(5)
// @Success 200 {object} CommentPageResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/ [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	page, err := s.commentService.ListComments(c.UserContext(), id,
		c.QueryInt("page", 1), c.QueryInt("page_size", service.DefaultCommentPageSize))
	if err != nil {
		return respondServiceError(c, err)
	}

	resp := CommentPageResponse{Count: page.Count, Results: page.Results}
	if page.HasNext() {
		next := pageURL(c, page.Page+1, page.PageSize)
		resp.Next = &next
	}
	if page.HasPrevious() {
		prev := pageURL(c, page.Page-1, page.PageSize)
		resp.Previous = &prev
	}
	if resp.Results == nil {
		resp.Results = []*models.Comment{}
	}
	return c.JSON(resp)
}

// CreateComment adds a comment to a published post
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body service.CreateCommentInput true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comment/ [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.CreateCommentInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), middleware.CurrentUser(c), id, in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

func pageURL(c *fiber.Ctx, page, size int) string {
	return fmt.Sprintf("%s%s?page=%d&page_size=%d", c.BaseURL(), c.Path(), page, size)
}
