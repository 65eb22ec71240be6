package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"plume/internal/config"
	"plume/internal/mail"
	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/service"
	"plume/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPassword = "Password123!"

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	server    *Server
	app       *fiber.App
	db        *gorm.DB
	redis     *miniredis.Miniredis
	mailer    *recordingMailer
	completer *mockCompleter
	hasher    *service.PasswordHasher
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "test",
		JWTSecret:              "server-test-secret-with-enough-entropy",
		AccessTokenTTLMinutes:  15,
		RefreshTokenTTLHours:   168,
		FrontendURL:            "http://localhost:5173",
		PasswordHashIterations: 1000,
	}
}

func newTestEnv(t *testing.T, configure ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		db:        testutil.NewSQLiteDB(t),
		redis:     mr,
		mailer:    &recordingMailer{},
		completer: &mockCompleter{},
	}
	srv, err := NewServer(cfg, Deps{DB: env.db, Redis: rdb, Mailer: env.mailer, Completer: env.completer})
	require.NoError(t, err)
	env.server = srv
	env.app = srv.App()

	env.hasher, err = service.NewPasswordHasher(cfg.PasswordHashIterations)
	require.NoError(t, err)
	return env
}

// createUser inserts a user whose password is testPassword.
func (e *testEnv) createUser(t *testing.T, username string, opts ...testutil.UserOption) *models.User {
	t.Helper()
	hash, err := e.hasher.Hash(testPassword)
	require.NoError(t, err)
	return testutil.CreateUser(t, e.db, username, append(opts, testutil.WithPassword(hash))...)
}

// session holds the credentials returned by a login.
type session struct {
	access  string
	refresh *http.Cookie
}

func (e *testEnv) login(t *testing.T, username string) session {
	t.Helper()
	resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/users/login/", map[string]string{
		"username": username,
		"password": testPassword,
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	cookie := refreshCookie(resp)
	require.NotNil(t, cookie)
	return session{access: body["access"].(string), refresh: cookie}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, raw := e.doRaw(t, req)
	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func (e *testEnv) doList(t *testing.T, req *http.Request) (*http.Response, []map[string]any) {
	t.Helper()
	resp, raw := e.doRaw(t, req)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(raw, &items), string(raw))
	return resp, items
}

func (e *testEnv) doRaw(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, raw
}

func jsonRequest(method, path string, payload any) *http.Request {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func withCookie(req *http.Request, cookie *http.Cookie) *http.Request {
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	return req
}

func withBearer(req *http.Request, access string) *http.Request {
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+access)
	return req
}

func refreshCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == middleware.RefreshCookieName {
			return c
		}
	}
	return nil
}
