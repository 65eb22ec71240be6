package server

import "github.com/gofiber/fiber/v2"

// GetAuthor returns an author with their published posts
// @Summary Get an author profile
// @Tags users
// @Produce json
// @Param id path int true "Author ID"
// @Success 200 {object} service.AuthorProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/author/{id}/ [get]
func (s *Server) GetAuthor(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.postService.AuthorProfile(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}
