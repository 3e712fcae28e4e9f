package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPFetcher retrieves script sources over HTTP
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher that retries transient failures
func NewHTTPFetcher(retries int, timeout time.Duration) *HTTPFetcher {
	client := resty.New().
		SetRetryCount(retries).
		SetRetryWaitTime(250*time.Millisecond).
		SetTimeout(timeout).
		SetHeader("Accept", "*/*")

	return &HTTPFetcher{client: client}
}

// Fetch returns the response body of url
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}
	return resp.String(), nil
}

// StaticFetcher serves scripts from memory, keyed by URL
type StaticFetcher map[string]string

// Fetch implements Fetcher
func (s StaticFetcher) Fetch(_ context.Context, url string) (string, error) {
	code, ok := s[url]
	if !ok {
		return "", fmt.Errorf("fetch %s: not found", url)
	}
	return code, nil
}
