package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"internhunter/internal/utils"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMinDelay    = 500 * time.Millisecond
	defaultMaxAttempts = 3
	defaultUserAgent   = "internhunter (job discovery; see repository README)"
)

// StatusError reports a non-2xx response from a board API. 4xx statuses other
// than 429 are not retried and surface as per-board errors.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Retryable reports whether a request that produced this status may be retried.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Fetcher is the shared HTTP layer under both platform clients. It enforces a
// minimum inter-request delay per host and retries transient failures with
// exponential backoff capped at a fixed attempt count.
type Fetcher struct {
	HTTPClient  *http.Client
	UserAgent   string
	MaxAttempts int
	MinDelay    time.Duration

	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher with the default timeout, rate limits and
// retry policy.
func NewFetcher(logger *zap.Logger) *Fetcher {
	return &Fetcher{
		HTTPClient:  &http.Client{Timeout: defaultTimeout},
		UserAgent:   defaultUserAgent,
		MaxAttempts: defaultMaxAttempts,
		MinDelay:    defaultMinDelay,
		logger:      logger,
		limiters:    make(map[string]*rate.Limiter),
	}
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if l, ok := f.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(f.MinDelay), 1)
	f.limiters[host] = l
	return l
}

// GetJSON fetches url and decodes the response body into target, applying the
// per-host rate limit and the retry policy.
func (f *Fetcher) GetJSON(ctx context.Context, url string, target any) error {
	body, err := f.get(ctx, url)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	backoff := f.MinDelay
	for attempt := 1; attempt <= f.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := utils.WaitFor(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}

		body, err := f.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return nil, err
		}

		f.logger.Debug("retrying request",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("after %d attempts: %w", f.MaxAttempts, lastErr)
}

func (f *Fetcher) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/json")

	if err := f.limiterFor(req.URL.Host).Wait(ctx); err != nil {
		return nil, err
	}

	f.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}
