package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "deepseek/deepseek-r1-0528:free",
		Timeout: timeout,
	})
}

func writeCompletion(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "cmpl-1",
		"object":  "text_completion",
		"created": 1,
		"model":   "deepseek/deepseek-r1-0528:free",
		"choices": []map[string]any{{"text": text, "index": 0, "finish_reason": "stop"}},
	})
}

func TestClient_CompleteSendsParameters(t *testing.T) {
	var got map[string]any
	client := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, "  Texte réécrit.  ")
	}, 0)

	text, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Texte réécrit.", text)

	assert.Equal(t, "deepseek/deepseek-r1-0528:free", got["model"])
	assert.Equal(t, "prompt", got["prompt"])
	assert.EqualValues(t, MaxResponseTokens, got["max_tokens"])
	assert.EqualValues(t, Temperature, got["temperature"])
	assert.EqualValues(t, TopP, got["top_p"])
}

func TestClient_CompleteFailures(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		timeout        time.Duration
		wantOutcome    Outcome
		wantRetryAfter string
	}{
		{
			name:        "empty completion",
			handler:     func(w http.ResponseWriter, _ *http.Request) { writeCompletion(w, "   ") },
			wantOutcome: OutcomeEmpty,
		},
		{
			name: "rate limited with header",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "17")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
			},
			wantOutcome:    OutcomeRateLimited,
			wantRetryAfter: "17",
		},
		{
			name: "rate limited without header",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`too many`))
			},
			wantOutcome:    OutcomeRateLimited,
			wantRetryAfter: DefaultRetryAfter,
		},
		{
			name: "api error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			},
			wantOutcome: OutcomeUpstream,
		},
		{
			name: "non json error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`<html>maintenance</html>`))
			},
			wantOutcome: OutcomeUpstream,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			timeout:     50 * time.Millisecond,
			wantOutcome: OutcomeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := completionServer(t, tt.handler, tt.timeout)

			_, err := client.Complete(context.Background(), "prompt")
			require.Error(t, err)

			var llmErr *Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.wantOutcome, llmErr.Outcome)
			assert.Equal(t, tt.wantRetryAfter, llmErr.RetryAfter)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(Config{BaseURL: url, Model: "m", Timeout: time.Second})
	_, err := client.Complete(context.Background(), "prompt")

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, OutcomeUpstream, llmErr.Outcome)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeInternal, Classify(errors.New("weird")).Outcome)
	assert.Equal(t, OutcomeTimeout, Classify(context.DeadlineExceeded).Outcome)

	classified := &Error{Outcome: OutcomeEmpty, Err: ErrEmptyCompletion}
	assert.Same(t, classified, Classify(classified))
	assert.ErrorIs(t, classified, ErrEmptyCompletion)
}

func TestTruncate(t *testing.T) {
	short := "Un court paragraphe."
	out, cut, err := Truncate(short, MaxInputTokens)
	require.NoError(t, err)
	assert.False(t, cut)
	assert.Equal(t, short, out)

	long := strings.Repeat("mot ", 5000)
	out, cut, err = Truncate(long, MaxInputTokens)
	require.NoError(t, err)
	assert.True(t, cut)
	assert.Less(t, len(out), len(long))

	e, err := encoding()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(e.Encode(out, nil, nil)), MaxInputTokens)
}

func TestImprovementPrompt(t *testing.T) {
	p := ImprovementPrompt("Bonjour")
	assert.True(t, strings.HasPrefix(p, "Réécris ce paragraphe en français"))
	assert.True(t, strings.HasSuffix(p, "sans explications :\n\nBonjour"))
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Un texte simple.", "Un texte simple."},
		{"markdown emphasis", "Un **texte** _riche_.", "Un texte riche."},
		{"paragraphs kept", "Premier.\n\nSecond.", "Premier.\n\nSecond."},
		{"reasoning dropped", "<think>je réfléchis</think>\nRésultat final.", "Résultat final."},
		{"entities unescaped", "Tom & Jerry", "Tom & Jerry"},
		{"heading", "# Titre\n\nCorps.", "Titre\n\nCorps."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}
