// Package middleware provides authentication and authorization middleware for the application.
package middleware

import (
	"context"
	"log/slog"
	"strings"

	"plume/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RefreshCookieName is the HttpOnly cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

const userLocalKey = "user"

// IdentityResolver turns request credentials into an active user.
type IdentityResolver interface {
	UserFromRefreshToken(ctx context.Context, token string) (*models.User, error)
	UserFromAccessToken(ctx context.Context, token string) (*models.User, error)
}

// AuthRequired authenticates the caller from the refresh cookie, falling back
// to a bearer access token for clients that cannot hold cookies.
func AuthRequired(resolver IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		var (
			user *models.User
			err  error
		)
		switch {
		case c.Cookies(RefreshCookieName) != "":
			user, err = resolver.UserFromRefreshToken(ctx, c.Cookies(RefreshCookieName))
		case BearerToken(c) != "":
			user, err = resolver.UserFromAccessToken(ctx, BearerToken(c))
		default:
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Aucun token trouvé dans les cookies. Veuillez vous connecter."))
		}
		if err != nil || user == nil {
			if err != nil {
				Logger.DebugContext(ctx, "authentication rejected", slog.String("error", err.Error()))
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token invalide ou expiré."))
		}

		c.Locals("userID", user.ID)
		c.Locals(userLocalKey, user)
		c.SetUserContext(context.WithValue(ctx, UserIDKey, user.ID))
		return c.Next()
	}
}

// StaffRequired rejects authenticated callers without the staff flag.
func StaffRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authentification requise."))
		}
		if !user.IsStaff {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Vous n'avez pas la permission d'effectuer cette action."))
		}
		return c.Next()
	}
}

// CurrentUser returns the user attached by AuthRequired, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userLocalKey).(*models.User)
	return user
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
