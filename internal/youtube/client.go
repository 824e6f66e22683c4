// Package youtube probes public YouTube metadata endpoints to confirm that
// curated content is still available.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultOEmbedEndpoint = "https://www.youtube.com/oembed"

// Checker reports whether a YouTube video is still publicly available.
type Checker interface {
	VideoAvailable(ctx context.Context, youtubeID string) (bool, error)
}

// Client checks availability through the oEmbed endpoint, which answers for
// public videos without an API key.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithEndpoint overrides the oEmbed endpoint, used by tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if strings.TrimSpace(endpoint) != "" {
			c.endpoint = endpoint
		}
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   defaultOEmbedEndpoint,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// VideoAvailable resolves the video through oEmbed. A 200 means the video is
// public; 400, 401, 403 and 404 all mean it is gone or restricted. Anything
// else is a transient failure and reported as an error so callers do not
// demote videos on flaky upstream responses.
func (c *Client) VideoAvailable(ctx context.Context, youtubeID string) (bool, error) {
	trimmed := strings.TrimSpace(youtubeID)
	if trimmed == "" {
		return false, fmt.Errorf("youtube id is required")
	}

	watchURL := "https://www.youtube.com/watch?v=" + url.QueryEscape(trimmed)
	probeURL := fmt.Sprintf("%s?url=%s&format=json", c.endpoint, url.QueryEscape(watchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return false, fmt.Errorf("build probe request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("probe video %s: %w", trimmed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("probe video %s: unexpected status %d", trimmed, resp.StatusCode)
	}
}

var _ Checker = (*Client)(nil)
