// Package fetch is the shared HTTP client used by every ATS connector. It
// applies a process-wide rate limit and classifies failures as transient or
// permanent.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; RoleTracker/1.0)"

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 16 << 20

// Result holds the raw response of a fetch.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
}

// Error represents an error during URL fetching. StatusCode is zero when no
// response was received.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Transient reports whether retrying the same request may succeed.
func (e *Error) Transient() bool {
	if e.StatusCode != 0 {
		return IsTransientHTTPStatus(e.StatusCode)
	}
	if errors.Is(e.Cause, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(e.Cause, &netErr) {
		return true
	}
	return errors.Is(e.Cause, context.DeadlineExceeded) || errors.Is(e.Cause, io.ErrUnexpectedEOF)
}

// NotFound reports whether the endpoint does not exist.
func (e *Error) NotFound() bool {
	return IsPermanentHTTPStatus(e.StatusCode)
}

// IsPermanentHTTPStatus returns true for status codes that mean the resource is gone.
func IsPermanentHTTPStatus(status int) bool {
	switch status {
	case http.StatusNotFound, http.StatusGone, http.StatusUnavailableForLegalReasons:
		return true
	default:
		return false
	}
}

// IsTransientHTTPStatus returns true for status codes worth retrying.
func IsTransientHTTPStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

// Options configures the client.
type Options struct {
	Timeout           time.Duration
	UserAgent         string
	Headers           map[string]string
	RequestsPerSecond float64
	Burst             int
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		RequestsPerSecond: 4,
		Burst:             4,
	}
}

// Client issues rate-limited requests.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	headers   map[string]string
}

// NewClient builds a Client. A non-positive RequestsPerSecond disables limiting.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(limit, max(opts.Burst, 1)),
		userAgent: ua,
		headers:   opts.Headers,
	}
}

// Get fetches urlStr. Non-2xx responses return the Result and an *Error.
func (c *Client) Get(ctx context.Context, urlStr string) (*Result, error) {
	return c.do(ctx, http.MethodGet, urlStr, nil, "")
}

// GetJSON fetches urlStr and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, urlStr string, v any) error {
	res, err := c.do(ctx, http.MethodGet, urlStr, nil, "")
	if err != nil {
		return err
	}
	return decode(res, v)
}

// PostJSON sends body as JSON and decodes the response into v.
func (c *Client) PostJSON(ctx context.Context, urlStr string, body, v any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	res, err := c.do(ctx, http.MethodPost, urlStr, payload, "application/json")
	if err != nil {
		return err
	}
	return decode(res, v)
}

func (c *Client) do(ctx context.Context, method, urlStr string, body []byte, contentType string) (*Result, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{URL: urlStr, Message: "rate limiter wait aborted", Cause: err}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{URL: urlStr, StatusCode: 0, Message: "failed to read response body", Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		Body:        bodyBytes,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, &Error{
			URL:        urlStr,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
		}
	}

	return result, nil
}

func decode(res *Result, v any) error {
	if err := json.Unmarshal(res.Body, v); err != nil {
		return &Error{URL: res.URL, Message: "failed to decode JSON", Cause: err}
	}
	return nil
}

// CleanText collapses runs of whitespace into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
