//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/runtime-bundler/internal/config"
	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
)

// Client wraps http.Client with a per-request timeout and status checks.
type Client struct {
	// http performs the requests.
	http *http.Client
	// userAgent is sent with every request when set.
	userAgent string

	// callTimeout bounds a single request including reading the body.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets the per-request timeout. Non-positive values are ignored.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

var (
	// errBadHTTPStatus is returned for any non-2xx response.
	errBadHTTPStatus = errors.New("unexpected http status")
	// errURLRequired is returned when a request has no URL.
	errURLRequired = errors.New("url must be provided")
)

// NewClient creates a client with config.DefaultTimeout.
func NewClient(opts ...Option) *Client {
	client := &Client{
		http:        &http.Client{},
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Fetch downloads url fully into memory.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.get(callCtx, url)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, failure.Network("read response", url, err)
	}

	return data, nil
}

// Download streams url into a new file at path and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, url, path string) (int64, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.get(callCtx, url)
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	output, err := os.Create(filepath.Clean(path))
	if err != nil {
		return 0, failure.Filesystem("create download target", path, err)
	}

	written, err := io.Copy(output, response.Body)
	if err != nil {
		_ = output.Close()

		return written, failure.Network("download", url, err)
	}

	if err = output.Close(); err != nil {
		return written, failure.Filesystem("close download target", path, err)
	}

	logger.DebugKV(ctx, "Downloaded file", "url", url, "path", path, "bytes", written)

	return written, nil
}

// get issues the request and checks the status. The caller closes the body.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	if url == "" {
		return nil, failure.Configuration("fetch", "url", errURLRequired)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, failure.Configuration("build request", url, err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	response, err := c.http.Do(req)
	if err != nil {
		return nil, failure.Network("fetch", url, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		_ = response.Body.Close()

		return nil, failure.Network("fetch", url, fmt.Errorf("%s: %w", response.Status, errBadHTTPStatus))
	}

	return response, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
