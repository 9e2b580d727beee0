// Package wayback submits URLs to the Internet Archive's "save page now"
// endpoint.
package wayback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnexpectedStatus is returned when the endpoint answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status from archive endpoint")

// Client issues archival requests.
type Client struct {
	endpoint string
	client   *resty.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.SetTimeout(d)
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.client.SetHeader("User-Agent", ua)
		}
	}
}

// New creates a Client that prefixes every permalink with endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   resty.New().SetRetryCount(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SaveURL returns the request URL for permalink. The permalink is appended
// verbatim, without escaping.
func (c *Client) SaveURL(permalink string) string {
	return c.endpoint + permalink
}

// Submit asks the archive to capture permalink. The response body is
// discarded; only the status matters.
func (c *Client) Submit(ctx context.Context, permalink string) error {
	rsp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(c.SaveURL(permalink))
	if err != nil {
		return fmt.Errorf("wayback: request failed: %w", err)
	}
	if body := rsp.RawBody(); body != nil {
		_, _ = io.Copy(io.Discard, body)
		_ = body.Close()
	}

	if !rsp.IsSuccess() {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, rsp.StatusCode())
	}
	return nil
}
