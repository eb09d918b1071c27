package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ProviderError wraps a failed provider call with enough context for the
// caller to decide on retry. The engine itself never retries; see
// internal/errclass for classification.
type ProviderError struct {
	Provider string
	Op       string
	Timeout  bool
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s provider: %s timed out: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s provider: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying with backoff.
// Timeouts, rate limits, and provider-side 5xx responses qualify; bad
// requests and auth failures do not.
func (e *ProviderError) Transient() bool {
	if e.Timeout {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	return false
}

// newProviderError inspects err for deadline expiry so bounded-timeout
// failures surface as ProviderTimeout.
func newProviderError(provider, op string, err error) *ProviderError {
	timeout := errors.Is(err, context.DeadlineExceeded)
	if !timeout {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			timeout = true
		}
	}
	return &ProviderError{Provider: provider, Op: op, Timeout: timeout, Err: err}
}

// newOpenAIClient builds a go-openai client for any OpenAI-compatible
// endpoint with sane connection pooling.
func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = newHTTPClient()
	return openai.NewClientWithConfig(clientConfig)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
