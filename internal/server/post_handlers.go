package server

import (
	"plume/internal/middleware"
	"plume/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts lists published posts
// @Summary List published posts
// @Description Newest first, optionally filtered by tag slug
// @Tags posts
// @Produce json
// @Param tag query string false "Tag slug"
// @Param limit query int false "Page size, at most 100" default(100)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Post
// @Router /posts/ [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, maxPaginationLimit)
	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Tag:    c.Query("tag"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetTags lists all tags
// @Summary List tags
// @Tags posts
// @Produce json
// @Success 200 {array} models.Tag
// @Router /posts/tags/ [get]
func (s *Server) GetTags(c *fiber.Ctx) error {
	tags, err := s.postService.ListTags(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tags)
}

// GetPost returns one published post
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/ [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// CreatePost publishes a post
// @Summary Create a post
// @Description Staff only. Tags are created on first use.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/create/ [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.CreatePostInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), middleware.CurrentUser(c), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost edits a post
// @Summary Update a post
// @Description Author or superuser. Omitted fields are kept; an empty tag_names clears the tags.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body service.UpdatePostInput true "Changes"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/update/ [put]
// @Router /posts/{id}/update/ [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.UpdatePostInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), middleware.CurrentUser(c), id, in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// ReactToPost toggles the caller's reaction
// @Summary Toggle a reaction
// @Description Adds the emoji reaction, or removes it when already present
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Param emoji path string true "LIKE, LOVE, HAHA, WOW, SAD or ANGRY"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/react/{emoji}/ [post]
func (s *Server) ReactToPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.ToggleReaction(c.UserContext(), middleware.CurrentUser(c), id, c.Params("emoji"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}
