// Package httpclient is a small JSON client used for fluidity servers and
// webhook targets: Bearer auth, a base URL, and retries on 429 and 5xx.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRetries  = 3
	defaultMaxDelay = 30 * time.Second
	maxErrBody      = 512
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
	retryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBackoff sets the first retry delay; later retries double it. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithMaxRetries bounds retries after the first attempt. Default: 3.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithMaxDelay caps any single retry wait, including one requested by
// Retry-After. Default: 30s.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) { c.maxDelay = d }
}

// Client talks JSON to one base URL.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	backoff  time.Duration
	maxDelay time.Duration
	retries  int
}

// New creates a Client. An empty token sends no Authorization header.
// Requests with an empty path go to baseURL exactly as given.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
		backoff:  time.Second,
		maxDelay: defaultMaxDelay,
		retries:  defaultRetries,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetJSON fetches path and decodes the JSON body into dest.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dest any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, dest)
}

// PostJSON encodes body as JSON, posts it to path and decodes any JSON
// response into dest. dest may be nil.
func (c *Client) PostJSON(ctx context.Context, path string, body, dest any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, b, dest)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, dest any) error {
	target := c.resolve(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var last *APIError
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(c.delay(attempt, last))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rd)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if dest == nil || len(bytes.TrimSpace(data)) == 0 {
				return nil
			}
			return json.Unmarshal(data, dest)
		}

		msg := string(data)
		if len(msg) > maxErrBody {
			msg = msg[:maxErrBody]
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: msg}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			last = apiErr
		case resp.StatusCode >= 500:
			last = apiErr
		default:
			return apiErr
		}
	}
	return last
}

func (c *Client) resolve(path string) string {
	if path == "" {
		return c.baseURL
	}
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// delay honors Retry-After on 429, otherwise backs off exponentially.
// Either way the wait is capped at maxDelay.
func (c *Client) delay(attempt int, last *APIError) time.Duration {
	d := c.backoff << (attempt - 1)
	if last != nil && last.retryAfter != "" {
		if secs, err := strconv.Atoi(last.retryAfter); err == nil && secs >= 0 {
			d = time.Duration(secs) * time.Second
		}
	}
	if c.maxDelay > 0 && (d > c.maxDelay || d < 0) {
		d = c.maxDelay
	}
	return d
}
