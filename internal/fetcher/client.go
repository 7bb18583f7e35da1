// Package fetcher retrieves the raw record batch from the remote source.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"webhookworker/internal/config"
	"webhookworker/internal/logger"
	"webhookworker/internal/models"
	"webhookworker/pkg/utils"
)

// Fetch errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrNotArray         = errors.New("response body is not a JSON array")
	ErrBodyTooLarge     = errors.New("response body exceeds limit")
)

const defaultMaxBodyKb = 4096

// FetchError reports a failed batch fetch.
type FetchError struct {
	Err        error
	URL        string
	StatusCode int
	Attempts   int
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s) (status %d): %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client fetches record batches with config-driven retry logic.
type Client struct {
	client      *http.Client
	headers     http.Header
	logger      *logger.Logger
	sleep       func(ctx context.Context, d time.Duration) error
	url         string
	retryPolicy config.RetryPolicy
	maxBodyKb   int
}

// NewClient creates a client for the configured source.
func NewClient(source config.SourceConfig, retry config.RetryPolicy, log *logger.Logger) *Client {
	return NewClientWithHTTP(&http.Client{Timeout: source.GetTimeout()}, source, retry, log)
}

// NewClientWithHTTP creates a client with a custom HTTP client (useful for testing).
func NewClientWithHTTP(hc *http.Client, source config.SourceConfig, retry config.RetryPolicy, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}

	maxBodyKb := source.MaxBodyKb
	if maxBodyKb <= 0 {
		maxBodyKb = defaultMaxBodyKb
	}

	return &Client{
		client:      hc,
		headers:     utils.NewHTTPHelper().BuildHeaders(source.UserAgent, nil),
		logger:      log.With("component", "fetcher"),
		sleep:       sleepContext,
		url:         source.URL,
		retryPolicy: retry,
		maxBodyKb:   maxBodyKb,
	}
}

// FetchBatch downloads the source and splits the JSON array into raw records.
func (c *Client) FetchBatch(ctx context.Context) ([]models.RawRecord, error) {
	body, attempts, err := c.fetchWithRetry(ctx)
	if err != nil {
		return nil, err
	}

	var batch []models.RawRecord
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, &FetchError{URL: c.url, Attempts: attempts, Err: fmt.Errorf("%w: %w", ErrNotArray, err)}
	}

	c.logger.Info("batch fetched", "url", c.url, "records", len(batch), "bytes", len(body), "attempts", attempts)

	return batch, nil
}

func (c *Client) fetchWithRetry(ctx context.Context) ([]byte, int, error) {
	var (
		lastErr        error
		lastStatusCode int
	)

	maxAttempts := max(c.retryPolicy.MaxAttempts, 1)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, status, retryable, err := c.fetchOnce(ctx)
		if err == nil {
			return body, attempt, nil
		}

		lastErr = err
		lastStatusCode = status

		if !retryable || attempt == maxAttempts {
			return nil, attempt, &FetchError{URL: c.url, StatusCode: lastStatusCode, Attempts: attempt, Err: lastErr}
		}

		delay := c.retryPolicy.GetRetryDelay(attempt)
		c.logger.Warn("fetch attempt failed, retrying",
			"attempt", attempt, "max_attempts", maxAttempts, "delay", delay, "error", err)

		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return nil, attempt, &FetchError{URL: c.url, StatusCode: lastStatusCode, Attempts: attempt, Err: sleepErr}
		}
	}

	return nil, maxAttempts, &FetchError{URL: c.url, StatusCode: lastStatusCode, Attempts: maxAttempts, Err: lastErr}
}

// fetchOnce performs one GET and reports whether a failure is worth retrying.
func (c *Client) fetchOnce(ctx context.Context) ([]byte, int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = c.headers.Clone()

	resp, err := c.client.Do(req)
	if err != nil {
		// a cancelled run is not retried
		return nil, 0, ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

		return nil, resp.StatusCode, isRetryableStatus(resp.StatusCode),
			fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	// Read with buffer limit, one extra byte detects truncation
	limit := int64(c.maxBodyKb) * 1024

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, resp.StatusCode, true, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > limit {
		return nil, resp.StatusCode, false, fmt.Errorf("%w: %d KB", ErrBodyTooLarge, c.maxBodyKb)
	}

	return body, resp.StatusCode, false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	// Retry on temporary failures
	switch statusCode {
	case http.StatusServiceUnavailable: // 503
		return true
	case http.StatusGatewayTimeout: // 504
		return true
	case http.StatusTooManyRequests: // 429
		return true
	case http.StatusRequestTimeout: // 408
		return true
	}

	return false
}
