// Package fetch is the first stage: it downloads documentation pages and
// saves them as Markdown files laid out by section.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docpipe/internal/services"
)

const defaultUserAgent = "docpipe/1.0 (+https://github.com/docpipe/docpipe)"

// Client fetches documentation pages from the source site.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) ClientOption {
	return func(c *Client) {
		if strings.TrimSpace(agent) != "" {
			c.userAgent = agent
		}
	}
}

// NewClient constructs a page fetcher for the given base URL.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured documentation root.
func (c *Client) BaseURL() string { return c.baseURL }

// PageURL resolves a page address relative to the base URL.
func (c *Client) PageURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// FetchPage retrieves one page. Missing pages map to the not-found marker;
// timeouts, rate limiting, and server errors map to the transient marker so
// the stage runner retries them.
func (c *Client) FetchPage(ctx context.Context, path string) ([]byte, error) {
	pageURL := c.PageURL(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// Connection failures and timeouts are worth retrying.
		return nil, services.Wrap(services.ErrTransient, "fetch", "get", pageURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "fetch", "get", pageURL, nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, services.Wrap(services.ErrTransient, "fetch", "get",
			fmt.Sprintf("%s: http %d", pageURL, resp.StatusCode), nil)
	default:
		return nil, services.Wrap(services.ErrContent, "fetch", "get",
			fmt.Sprintf("%s: http %d", pageURL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "read body", pageURL, err)
	}
	return body, nil
}
