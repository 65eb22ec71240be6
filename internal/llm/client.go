// Package llm talks to the OpenAI-compatible completions API used to rewrite
// post content.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"plume/internal/observability"

	"github.com/sashabaranov/go-openai"
)

// Request parameters sent with every completion.
const (
	MaxInputTokens    = 3000
	MaxResponseTokens = 500
	Temperature       = 0.5
	TopP              = 1.0
)

// ErrEmptyCompletion is returned when the upstream answered with no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Completer produces a completion for prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config describes the upstream endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls the legacy /completions endpoint once per request; it never
// retries.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds a client. It is safe for concurrent use.
func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &retryAfterTransport{base: http.DefaultTransport},
	}
	return &Client{api: openai.NewClientWithConfig(oc), model: cfg.Model}
}

// Complete returns the trimmed completion text. Failures are *Error values.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	call, ctx := observability.StartUpstreamCall(ctx, "llm.complete", c.model, len(prompt))

	ctx, holder := withRetryAfter(ctx)
	resp, err := c.api.CreateCompletion(ctx, openai.CompletionRequest{
		Model:            c.model,
		Prompt:           prompt,
		MaxTokens:        MaxResponseTokens,
		Temperature:      Temperature,
		TopP:             TopP,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
	})
	if err != nil {
		failure := classify(err, holder.get())
		call.Finish(failure.Outcome.String(), err)
		return "", failure
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Text)
	}
	if text == "" {
		call.Finish(OutcomeEmpty.String(), ErrEmptyCompletion)
		return "", &Error{Outcome: OutcomeEmpty, Err: ErrEmptyCompletion}
	}
	call.Finish("ok", nil)
	return text, nil
}
