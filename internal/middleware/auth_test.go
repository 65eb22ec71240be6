package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"plume/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	refresh map[string]*models.User
	access  map[string]*models.User
}

func (s *stubResolver) UserFromRefreshToken(_ context.Context, token string) (*models.User, error) {
	if u, ok := s.refresh[token]; ok {
		return u, nil
	}
	return nil, errors.New("invalid refresh token")
}

func (s *stubResolver) UserFromAccessToken(_ context.Context, token string) (*models.User, error) {
	if u, ok := s.access[token]; ok {
		return u, nil
	}
	return nil, errors.New("invalid access token")
}

func TestAuthRequired(t *testing.T) {
	reader := &models.User{ID: 9, Username: "reader", IsActive: true}
	editor := &models.User{ID: 3, Username: "editor", IsActive: true, IsStaff: true}
	resolver := &stubResolver{
		refresh: map[string]*models.User{"good-refresh": reader},
		access:  map[string]*models.User{"good-access": editor},
	}

	app := fiber.New()
	app.Get("/me", AuthRequired(resolver), func(c *fiber.Ctx) error {
		uid, _ := c.UserContext().Value(UserIDKey).(uint)
		return c.JSON(fiber.Map{"id": CurrentUser(c).ID, "ctx_id": uid})
	})
	app.Post("/admin", AuthRequired(resolver), StaffRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	tests := []struct {
		name   string
		method string
		path   string
		cookie string
		bearer string
		status int
	}{
		{"refresh cookie", http.MethodGet, "/me", "good-refresh", "", http.StatusOK},
		{"bearer access token", http.MethodGet, "/me", "", "good-access", http.StatusOK},
		{"cookie takes precedence", http.MethodGet, "/me", "bad-refresh", "good-access", http.StatusUnauthorized},
		{"no credentials", http.MethodGet, "/me", "", "", http.StatusUnauthorized},
		{"bad bearer", http.MethodGet, "/me", "", "nope", http.StatusUnauthorized},
		{"staff allowed", http.MethodPost, "/admin", "", "good-access", http.StatusNoContent},
		{"non staff forbidden", http.MethodPost, "/admin", "good-refresh", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: tt.cookie})
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestBearerToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(BearerToken(c))
	})

	tests := map[string]string{
		"Bearer abc": "abc",
		"Basic abc":  "",
		"Bearer":     "",
		"Bearer a b": "",
		"":           "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		buf := make([]byte, 16)
		n, _ := resp.Body.Read(buf)
		assert.Equal(t, want, string(buf[:n]), "header %q", header)
	}
}
