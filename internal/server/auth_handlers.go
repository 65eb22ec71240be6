package server

import (
	"errors"
	"log/slog"
	"time"

	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Messages of the session endpoints.
const (
	msgRefreshMissing  = "Refresh token non fourni"
	msgLogoutFailed    = "Erreur lors de la déconnexion"
	msgLoggedOut       = "Déconnexion réussie"
	msgResetEmailSent  = "Email de réinitialisation envoyé"
	msgPasswordChanged = "Mot de passe réinitialisé"
)

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User   *models.User `json:"user"`
	Access string       `json:"access"`
}

// AccessResponse is returned by token refresh.
type AccessResponse struct {
	Access string `json:"access"`
}

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// PasswordResetRequest is the body of a reset request.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// Register handles user registration
// @Summary Register a new user
// @Description Create an account, sign it in and set the refresh cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration data"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /users/register/ [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	user, pair, err := s.authService.Register(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.setRefreshCookie(c, pair)
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{User: user, Access: pair.Access})
}

// Login handles user login
// @Summary Login user
// @Description Authenticate with username and password and set the refresh cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /users/login/ [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	user, pair, err := s.authService.Authenticate(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.setRefreshCookie(c, pair)
	return c.JSON(AuthResponse{User: user, Access: pair.Access})
}

// Refresh rotates the refresh cookie
// @Summary Refresh tokens
// @Description Exchange the refresh cookie for a new access token and a rotated cookie
// @Tags auth
// @Produce json
// @Success 200 {object} AccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /users/token/refresh/ [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	raw := c.Cookies(middleware.RefreshCookieName)
	if raw == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(msgRefreshMissing))
	}

	pair, _, err := s.tokens.Refresh(c.UserContext(), raw)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.setRefreshCookie(c, pair)
	return c.JSON(AccessResponse{Access: pair.Access})
}

// Logout revokes the session
// @Summary Logout user
// @Description Blacklist the refresh cookie (and the bearer access token if sent) and clear the cookie
// @Tags auth
// @Produce json
// @Success 205 {object} MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /users/logout/ [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	raw := c.Cookies(middleware.RefreshCookieName)
	if raw == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(msgRefreshMissing))
	}

	if err := s.tokens.Revoke(ctx, raw); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(msgLogoutFailed))
		}
		return respondServiceError(c, err)
	}

	if access := middleware.BearerToken(c); access != "" {
		if err := s.tokens.RevokeAccess(ctx, access); err != nil {
			middleware.Logger.DebugContext(ctx, "access token not revoked on logout", slog.String("error", err.Error()))
		}
	}

	s.clearRefreshCookie(c)
	return c.Status(fiber.StatusResetContent).JSON(MessageResponse{Message: msgLoggedOut})
}

// RequestPasswordReset mails a reset link
// @Summary Request a password reset
// @Description Send a single-use reset link, valid one hour, to the account's email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body PasswordResetRequest true "Account email"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /users/password/reset/ [post]
func (s *Server) RequestPasswordReset(c *fiber.Ctx) error {
	var req PasswordResetRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(MessageResponse{Message: msgResetEmailSent})
}

// ConfirmPasswordReset sets a new password
// @Summary Confirm a password reset
// @Description Consume a reset token and set the new password
// @Tags auth
// @Accept json
// @Produce json
// @Param token path string true "Reset token"
// @Param request body service.ResetConfirmInput true "New password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /users/password/reset/{token}/ [post]
func (s *Server) ConfirmPasswordReset(c *fiber.Ctx) error {
	var in service.ResetConfirmInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	if err := s.authService.ConfirmPasswordReset(c.UserContext(), c.Params("token"), in); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(MessageResponse{Message: msgPasswordChanged})
}

func (s *Server) setRefreshCookie(c *fiber.Ctx, pair service.TokenPair) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.RefreshCookieName,
		Value:    pair.Refresh,
		Path:     "/",
		MaxAge:   int(s.tokens.RefreshTTL().Seconds()),
		Expires:  pair.RefreshExpiresAt,
		Secure:   s.config.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.RefreshCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   s.config.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
