package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultOrigin is the Google APIs origin. Both the metadata and the
	// upload endpoints hang off it.
	DefaultOrigin = "https://www.googleapis.com"

	apiPath    = "/drive/v3"
	uploadPath = "/upload/drive/v3"

	userAgent = "driveup/0.1"

	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// Client is a Google Drive v3 API client with automatic retry.
type Client struct {
	baseURL    string
	uploadURL  string
	httpClient *http.Client
	token      oauth2.TokenSource
	logger     *slog.Logger

	// sleepFunc is swappable for tests.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Drive API client rooted at origin. An empty origin
// selects the real Google endpoint; tests pass an httptest server URL.
// The token source supplies OAuth2 bearer tokens and is expected to
// refresh them as needed.
func NewClient(origin string, httpClient *http.Client, token oauth2.TokenSource, logger *slog.Logger) *Client {
	if origin == "" {
		origin = DefaultOrigin
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{
		baseURL:    origin + apiPath,
		uploadURL:  origin + uploadPath,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// timeSleep sleeps for d or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do sends an API request to the metadata endpoint and returns the
// response. Callers must close the response body. Non-2xx responses are
// returned as *DriveError after the body has been consumed.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	return c.request(ctx, method, c.baseURL+path, body, nil)
}

// DoUpload sends a request to the upload endpoint. The headers map
// carries upload-specific headers such as X-Upload-Content-Type.
func (c *Client) DoUpload(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	return c.request(ctx, method, c.uploadURL+path, body, headers)
}

// request performs an HTTP request with retry on transient failures.
// Request bodies must implement io.Seeker to be retried; a non-seekable
// body disables retry after the first send.
func (c *Client) request(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		tok, err := c.token.Token()
		if err != nil {
			return nil, fmt.Errorf("getting token: %w", err)
		}

		tok.SetAuthHeader(req)
		req.Header.Set("User-Agent", userAgent)

		if body != nil && method != http.MethodGet {
			req.Header.Set("Content-Type", "application/json")
		}

		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network errors are worth retrying unless the context is done.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			lastErr = fmt.Errorf("sending request: %w", err)
			if attempt == maxRetries || !rewindBody(body) {
				return nil, lastErr
			}

			c.logger.Warn("request failed, retrying", "method", method, "url", url,
				"attempt", attempt+1, "error", err)

			if err := c.sleepFunc(ctx, calcBackoff(attempt)); err != nil {
				return nil, err
			}

			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		driveErr := drainError(resp)
		lastErr = driveErr

		if !isRetryable(resp.StatusCode, driveErr.Reason) || attempt == maxRetries || !rewindBody(body) {
			return nil, driveErr
		}

		backoff := retryBackoff(resp, attempt)
		c.logger.Warn("retryable API error", "method", method, "url", url,
			"status", resp.StatusCode, "reason", driveErr.Reason,
			"attempt", attempt+1, "backoff", backoff)

		if err := c.sleepFunc(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// rewindBody seeks a request body back to the start for a retry.
// Returns false if the body cannot be rewound.
func rewindBody(body io.Reader) bool {
	if body == nil {
		return true
	}

	seeker, ok := body.(io.Seeker)
	if !ok {
		return false
	}

	_, err := seeker.Seek(0, io.SeekStart)

	return err == nil
}

// drainError reads and closes an error response body and builds a
// DriveError from it.
func drainError(resp *http.Response) *DriveError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()

	return newDriveError(resp.StatusCode, body)
}

// retryBackoff computes the wait before the next attempt, honoring the
// Retry-After header when the server sends one.
func retryBackoff(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	return calcBackoff(attempt)
}

// calcBackoff returns an exponential backoff with jitter for the given
// zero-based attempt number.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= backoffFactor
	}

	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (2*rand.Float64() - 1)

	return time.Duration(backoff + jitter)
}

// decodeJSON decodes a JSON response body into v and closes the body.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
