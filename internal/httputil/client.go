// Package httputil provides the outbound HTTP client used to pull listing
// feeds.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 2
	defaultBackoff    = 500 * time.Millisecond
	errorBodyLimit    = 4 << 10
)

// Client performs GET requests, retrying transport failures, 429 and 5xx
// responses with linear backoff.
type Client struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	userAgent  string
}

// ClientConfig configures the client. HTTPClient, when set, wins over
// Timeout. A negative MaxRetries disables retries.
type ClientConfig struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	UserAgent  string
}

// NewClient creates a client, filling unset fields with defaults.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = defaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}

	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "estatehub-scraper/1.0"
	}

	return &Client{
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		userAgent:  userAgent,
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// GetJSON fetches url and returns at most limit bytes of the body.
func (c *Client) GetJSON(ctx context.Context, url string, limit int64) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * c.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		body, err := c.get(ctx, url, limit)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, truncated, _ := ReadAllWithLimit(resp.Body, errorBodyLimit)
		msg := strings.TrimSpace(string(body))
		if truncated {
			msg += "...(truncated)"
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	body, truncated, err := ReadAllWithLimit(resp.Body, limit)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if truncated {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return body, nil
}

// ReadAllWithLimit reads up to limit bytes and reports whether r held more.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}
