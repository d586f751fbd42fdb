// Package probe checks whether listing sites are reachable before a crawl.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"listing-crawler/internal/crawler"
	"listing-crawler/internal/logging"
)

// Result is the outcome of checking one URL
type Result struct {
	URL          string
	Accessible   bool
	StatusCode   int
	ResponseTime time.Duration
	Attempts     int
	Err          error
	CheckedAt    time.Time
}

// Checker probes URLs with retries
type Checker struct {
	Client     *http.Client
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
	logger     zerolog.Logger
}

// NewChecker creates a checker that uses the given client
func NewChecker(client *http.Client, maxRetries int, retryDelay time.Duration) *Checker {
	return &Checker{
		Client:     client,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
		UserAgent:  crawler.DefaultUserAgent,
		logger:     logging.NewLogger("probe"),
	}
}

// errServer marks a 5xx answer so that it is retried
var errServer = errors.New("server error")

// Check requests url until it answers below 500 or retries run out
func (c *Checker) Check(ctx context.Context, url string) Result {
	res := Result{URL: url, CheckedAt: time.Now()}
	logger := c.logger.With().Str("url", url).Logger()

	operation := func() error {
		res.Attempts++
		start := time.Now()
		status, err := c.get(ctx, url)
		res.ResponseTime = time.Since(start)
		res.StatusCode = status
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Int("attempt", res.Attempts).Dur("retry_in", wait).Msg("Probe failed, retrying")
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.RetryDelay), uint64(max(c.MaxRetries, 0))),
		ctx,
	)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		res.Err = err
		logger.Error().Err(err).Int("status", res.StatusCode).Msg("Site unreachable")
		return res
	}

	res.Accessible = true
	logger.Info().Int("status", res.StatusCode).Dur("response_time", res.ResponseTime).Msg("Site reachable")
	return res
}

// CheckAll probes each URL in turn
func (c *Checker) CheckAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		results = append(results, c.Check(ctx, u))
	}
	return results
}

// CountAccessible returns how many results were reachable
func CountAccessible(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Accessible {
			n++
		}
	}
	return n
}

func (c *Checker) get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, fmt.Errorf("%w: HTTP %d", errServer, resp.StatusCode)
	}
	return resp.StatusCode, nil
}
