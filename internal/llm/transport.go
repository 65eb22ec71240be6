package llm

import (
	"context"
	"net/http"
)

type retryAfterKey struct{}

// retryAfterHolder receives the Retry-After header of a 429 answer. The
// openai error types drop response headers.
type retryAfterHolder struct {
	value string
}

func (h *retryAfterHolder) get() string {
	if h == nil {
		return ""
	}
	return h.value
}

func withRetryAfter(ctx context.Context) (context.Context, *retryAfterHolder) {
	h := &retryAfterHolder{}
	return context.WithValue(ctx, retryAfterKey{}, h), h
}

type retryAfterTransport struct {
	base http.RoundTripper
}

func (t *retryAfterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	if h, ok := req.Context().Value(retryAfterKey{}).(*retryAfterHolder); ok {
		h.value = resp.Header.Get("Retry-After")
	}
	return resp, nil
}
