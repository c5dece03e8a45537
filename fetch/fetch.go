// Package fetch issues single HTTP GETs with retry and exponential backoff.
// Retry lives here and only here; nothing above it re-retries a fetch.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// FetchError wraps the last underlying failure after all attempts are spent
// (or after a non-retryable failure).
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retryable reports whether the failure is transient. Server-side errors are,
// client errors are not.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500
}

// Options configures a Client. Zero fields fall back to defaults.
type Options struct {
	MaxAttempts int           // default 3
	BaseDelay   time.Duration // default 1s, doubled per attempt
	MaxDelay    time.Duration // backoff cap, default 30s
	Timeout     time.Duration // per-request, default 15s
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = time.Second
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 30 * time.Second
	}
	if out.Timeout <= 0 {
		out.Timeout = 15 * time.Second
	}
	return out
}

// Client fetches pages with bounded retry. It is stateless across calls and
// safe for concurrent use.
type Client struct {
	http *http.Client
	opts Options
}

func New(httpClient *http.Client, opts Options) *Client {
	opts = opts.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{http: httpClient, opts: opts}
}

// Get fetches url with the supplied headers. Transient failures (network
// error, timeout, 5xx) are retried with exponential backoff; 4xx responses
// and malformed URLs fail immediately. The returned error is always a
// *FetchError on failure.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		// Malformed URL precondition, never retried.
		return nil, &FetchError{URL: url, Attempts: 0, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	var lastErr error
	delay := c.opts.BaseDelay

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		body, err := c.once(req.Clone(ctx))
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, &FetchError{URL: url, Attempts: attempt, Err: err}
		}
		if attempt == c.opts.MaxAttempts {
			break
		}

		log.Printf("[fetch] %s failed (attempt %d/%d): %v — retrying in %v",
			url, attempt, c.opts.MaxAttempts, err, delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &FetchError{URL: url, Attempts: attempt, Err: ctx.Err()}
		}

		delay *= 2
		if delay > c.opts.MaxDelay {
			delay = c.opts.MaxDelay
		}
	}

	return nil, &FetchError{URL: url, Attempts: c.opts.MaxAttempts, Err: lastErr}
}

func (c *Client) once(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}

func retryable(err error) bool {
	if se, ok := err.(*StatusError); ok {
		return se.Retryable()
	}
	// Everything else reaching here is a transport-level failure
	// (connection refused, reset, timeout) and worth another attempt.
	return true
}
