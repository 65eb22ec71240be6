package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/sashabaranov/go-openai"
)

// DefaultRetryAfter is reported when a 429 carries no Retry-After header.
const DefaultRetryAfter = "60"

// Outcome classifies a failed upstream call.
type Outcome int

const (
	OutcomeInternal Outcome = iota
	OutcomeEmpty
	OutcomeRateLimited
	OutcomeTimeout
	OutcomeUpstream
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeUpstream:
		return "upstream_error"
	default:
		return "internal_error"
	}
}

// Error is a classified upstream failure.
type Error struct {
	Outcome Outcome
	// RetryAfter is set for OutcomeRateLimited.
	RetryAfter string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Outcome, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify returns err as an *Error, classifying it if needed.
func Classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return classify(err, "")
}

func classify(err error, retryAfter string) *Error {
	if status, ok := upstreamStatus(err); ok {
		if status == http.StatusTooManyRequests {
			if retryAfter == "" {
				retryAfter = DefaultRetryAfter
			}
			return &Error{Outcome: OutcomeRateLimited, RetryAfter: retryAfter, Err: err}
		}
		if status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout {
			return &Error{Outcome: OutcomeTimeout, Err: err}
		}
		return &Error{Outcome: OutcomeUpstream, Err: err}
	}

	if isTimeout(err) {
		return &Error{Outcome: OutcomeTimeout, Err: err}
	}

	// Connection failures: the service is unreachable rather than broken here.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &Error{Outcome: OutcomeUpstream, Err: err}
	}

	return &Error{Outcome: OutcomeInternal, Err: err}
}

func upstreamStatus(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
