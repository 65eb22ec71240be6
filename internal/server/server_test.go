package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"plume/docs"
	"plume/internal/config"
	"plume/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, jsonRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "up", body["status"])

	resp, body = env.do(t, jsonRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "healthy", checks["redis"])

	env.redis.Close()
	resp, body = env.do(t, jsonRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", body["checks"].(map[string]any)["redis"])
}

func TestReadinessWithoutRedis(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	srv, err := NewServer(testConfig(), Deps{DB: db, Mailer: &recordingMailer{}, Completer: &mockCompleter{}})
	require.NoError(t, err)
	app := srv.App()

	resp, err := app.Test(jsonRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewServerRequiresDatabase(t *testing.T) {
	_, err := NewServer(testConfig(), Deps{})
	assert.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, jsonRequest(http.MethodGet, "/health/live", nil))

	resp, raw := env.doRaw(t, jsonRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, jsonRequest(http.MethodGet, "/api/nope/", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestCORSAllowsCredentials(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.AllowedOrigins = "https://blog.example.com" })

	req := jsonRequest(http.MethodOptions, "/api/users/login/", nil)
	req.Header.Set("Origin", "https://blog.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestOpenAPIDocumentCoversRoutes(t *testing.T) {
	env := newTestEnv(t)

	var doc struct {
		BasePath string                                `json:"basePath"`
		Paths    map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc))
	require.Equal(t, "/api", doc.BasePath)

	param := regexp.MustCompile(`:(\w+)`)
	for _, route := range env.app.GetRoutes(true) {
		if !strings.HasPrefix(route.Path, "/api/") || route.Method == http.MethodHead {
			continue
		}
		path := param.ReplaceAllString(strings.TrimPrefix(route.Path, "/api"), "{$1}")
		ops, ok := doc.Paths[path]
		if assert.True(t, ok, "undocumented path %s", path) {
			assert.Contains(t, ops, strings.ToLower(route.Method), "undocumented %s %s", route.Method, path)
		}
	}

	statuses := func(path, method string) map[string]json.RawMessage {
		var op struct {
			Responses map[string]json.RawMessage `json:"responses"`
		}
		require.NoError(t, json.Unmarshal(doc.Paths[path][method], &op))
		return op.Responses
	}
	assert.Contains(t, statuses("/users/register/", "post"), "201")
	assert.Contains(t, statuses("/users/register/", "post"), "400")
	assert.Contains(t, statuses("/users/logout/", "post"), "205")
	assert.Contains(t, statuses("/posts/create/", "post"), "201")
	assert.Contains(t, statuses("/posts/create/", "post"), "403")
	assert.Contains(t, statuses("/posts/{id}/suggestions/", "post"), "504")
}
