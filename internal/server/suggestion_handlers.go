package server

import (
	"plume/internal/middleware"
	"plume/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SuggestionResponse carries the rewritten text.
type SuggestionResponse struct {
	Reponse string `json:"réponse"`
}

// RequestSuggestions asks the language model to improve a post
// @Summary Improve a post's text
// @Description Staff author only. Rewrites the given text, or the post content when omitted.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body service.SuggestionInput false "Text to improve"
// @Success 200 {object} SuggestionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Failure 504 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/suggestions/ [post]
func (s *Server) RequestSuggestions(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.SuggestionInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	text, err := s.suggestionService.Improve(c.UserContext(), middleware.CurrentUser(c), id, in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(SuggestionResponse{Reponse: text})
}
