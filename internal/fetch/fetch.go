// SPDX-License-Identifier: MPL-2.0

// Package fetch provides the HTTP download collaborator used for release
// artifacts and checksum sidecars. Transient failures (connection errors,
// 5xx responses) are retried a bounded number of times with a fixed delay;
// 4xx responses are not retried.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// defaultAttempts is the total number of tries per download, including
	// the first.
	defaultAttempts = 3

	// defaultDelay is the fixed pause between attempts.
	defaultDelay = 5 * time.Second

	// maxBodyBytes is the upper bound on a single downloaded artifact
	// (500 MB). Prevents unbounded disk consumption from a misbehaving
	// upstream.
	maxBodyBytes = 500 << 20
)

// ErrNotFound indicates the resource does not exist upstream (HTTP 404).
// Callers use it to distinguish "no checksum sidecar published" from a
// download failure.
var ErrNotFound = errors.New("resource not found")

type (
	// Fetcher downloads resources over HTTP with bounded retries.
	Fetcher struct {
		httpClient *http.Client
		attempts   int
		delay      time.Duration
		sleep      func(context.Context, time.Duration) error
		logger     *log.Logger
	}

	// Option configures a Fetcher during construction.
	Option func(*Fetcher)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy
// configurations.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithRetryPolicy overrides the attempt count and inter-attempt delay.
func WithRetryPolicy(attempts int, delay time.Duration) Option {
	return func(f *Fetcher) {
		f.attempts = attempts
		f.delay = delay
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with the default 3-attempt, 5-second-delay policy.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: http.DefaultClient,
		attempts:   defaultAttempts,
		delay:      defaultDelay,
		sleep:      sleepCtx,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get downloads the resource at rawURL into memory. Intended for small
// resources such as checksum sidecars; artifact downloads go through
// DownloadToTemp. Returns ErrNotFound for a 404 without retrying.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	err := f.withRetries(ctx, rawURL, func(body io.Reader) error {
		b, readErr := io.ReadAll(io.LimitReader(body, maxBodyBytes))
		if readErr != nil {
			return fmt.Errorf("reading response: %w", readErr)
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DownloadToTemp streams the resource at rawURL into a temporary file in
// dir and returns the file's path. The caller is responsible for removing
// the file; on error nothing is left behind.
func (f *Fetcher) DownloadToTemp(ctx context.Context, rawURL, dir string) (string, error) {
	var path string
	err := f.withRetries(ctx, rawURL, func(body io.Reader) (err error) {
		tmp, createErr := os.CreateTemp(dir, "secup-download-*")
		if createErr != nil {
			return fmt.Errorf("creating temp file: %w", createErr)
		}
		defer func() {
			if closeErr := tmp.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			if err != nil {
				// Best-effort removal of a partially written temp file.
				_ = os.Remove(tmp.Name())
			}
		}()

		if _, err = io.Copy(tmp, io.LimitReader(body, maxBodyBytes)); err != nil {
			return fmt.Errorf("writing to temp file: %w", err)
		}
		path = tmp.Name()
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// withRetries runs one GET per attempt, handing a successful response body
// to consume. Connection errors and 5xx responses are retried; a 404 maps
// to ErrNotFound and other 4xx responses fail immediately.
func (f *Fetcher) withRetries(ctx context.Context, rawURL string, consume func(io.Reader) error) error {
	var lastErr error

	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			f.logger.Debug("retrying download", "url", redactURL(rawURL), "attempt", attempt)
			if err := f.sleep(ctx, f.delay); err != nil {
				return err
			}
		}

		retryable, err := f.tryOnce(ctx, rawURL, consume)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
		f.logger.Debug("transient download failure", "url", redactURL(rawURL), "error", err)
	}

	return fmt.Errorf("downloading %s: giving up after %d attempts: %w", redactURL(rawURL), f.attempts, lastErr)
}

// tryOnce performs a single GET. The bool result reports whether the
// failure is transient and worth retrying.
func (f *Fetcher) tryOnce(ctx context.Context, rawURL string, consume func(io.Reader) error) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		// Context cancellation is not transient; everything else
		// (DNS, connect, TLS) is.
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, err
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	switch {
	case resp.StatusCode == http.StatusOK:
		return false, consume(resp.Body)
	case resp.StatusCode == http.StatusNotFound:
		return false, fmt.Errorf("%s: %w", redactURL(rawURL), ErrNotFound)
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("%s: server error %d", redactURL(rawURL), resp.StatusCode)
	default:
		return false, fmt.Errorf("%s: unexpected status %d", redactURL(rawURL), resp.StatusCode)
	}
}

// sleepCtx pauses for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in error messages and logs.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
