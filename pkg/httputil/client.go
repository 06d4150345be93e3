package httputil

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/wonny/nsefeed/pkg/apperrors"
	"github.com/wonny/nsefeed/pkg/config"
	"github.com/wonny/nsefeed/pkg/logger"
)

// Client fetches exchange pages the way a browser session would: warm-up visit,
// rotating headers, paced attempts and a fixed backoff between them.
// ⭐ SSOT: every request to the exchange goes through this client
type Client struct {
	transport   http.RoundTripper
	logger      *logger.Logger
	endpoints   *config.Endpoints
	retryConfig RetryConfig
	sleep       SleepFunc

	// mu serializes outbound requests; headers belong to the in-flight request
	mu      sync.Mutex
	headers http.Header
}

// RetryConfig holds attempt and pacing configuration
type RetryConfig struct {
	MaxRetries int           // total attempts
	Timeout    time.Duration // per attempt
	PaceDelay  time.Duration // before every attempt
	RetryDelay time.Duration // after a failed attempt
}

// FetchOptions overrides the client defaults for one call. Zero values keep the defaults.
type FetchOptions struct {
	Retries int
	Timeout time.Duration
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// New creates a fetcher from config
// ⭐ SSOT: http.Client instances are only created here
func New(cfg *config.Config, endpoints *config.Endpoints, log *logger.Logger) *Client {
	return &Client{
		transport: http.DefaultTransport,
		logger:    log.Component("fetcher"),
		endpoints: endpoints,
		retryConfig: RetryConfig{
			MaxRetries: cfg.NSE.MaxRetries,
			Timeout:    cfg.NSE.Timeout,
			PaceDelay:  cfg.NSE.PaceDelay,
			RetryDelay: cfg.NSE.RetryDelay,
		},
		sleep: sleepContext,
	}
}

// WithRetry configures attempt count and backoff
func (c *Client) WithRetry(maxRetries int, retryDelay time.Duration) *Client {
	c.retryConfig.MaxRetries = maxRetries
	c.retryConfig.RetryDelay = retryDelay
	return c
}

// WithPacing sets the delay applied before every attempt
func (c *Client) WithPacing(delay time.Duration) *Client {
	c.retryConfig.PaceDelay = delay
	return c
}

// WithSleep replaces the wait function (tests record delays instead of sleeping)
func (c *Client) WithSleep(fn SleepFunc) *Client {
	c.sleep = fn
	return c
}

// WithTransport replaces the round tripper
func (c *Client) WithTransport(rt http.RoundTripper) *Client {
	c.transport = rt
	return c
}

// Fetch GETs url and returns the response body.
// After all attempts fail it probes the diagnostic host once and returns a *ConnectionError.
func (c *Client) Fetch(ctx context.Context, url string, opts FetchOptions) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	attempts := c.retryConfig.MaxRetries
	if opts.Retries > 0 {
		attempts = opts.Retries
	}
	timeout := c.retryConfig.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	c.headers = c.newHeaders()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.sleep(ctx, c.retryConfig.PaceDelay); err != nil {
			return nil, err
		}

		startTime := time.Now()
		body, err := c.attempt(ctx, url, timeout)
		if err == nil {
			c.logger.WithFields(map[string]interface{}{
				"url":      url,
				"attempt":  attempt,
				"bytes":    len(body),
				"duration": time.Since(startTime),
			}).Debug("HTTP request completed")
			return body, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		c.logger.WithFields(map[string]interface{}{
			"url":     url,
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("HTTP attempt failed")

		if attempt == attempts {
			break
		}

		c.headers = c.newHeaders()
		if err := c.sleep(ctx, c.retryConfig.RetryDelay); err != nil {
			return nil, err
		}
	}

	reachable := c.diagnose(ctx)
	if reachable {
		c.logger.WithField("url", url).Error("site is refusing requests, try slowing down")
	} else {
		c.logger.WithField("url", url).Error("cannot connect to internet")
	}

	return nil, &ConnectionError{
		URL:       url,
		Attempts:  attempts,
		Reachable: reachable,
		Err:       lastErr,
	}
}

// attempt runs one session: fresh cookie jar, warm-up visit, then the real GET
func (c *Client) attempt(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	session := &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   timeout,
	}

	if err := c.warmUp(ctx, session); err != nil {
		return nil, fmt.Errorf("warm-up request failed: %w", err)
	}

	return c.get(ctx, session, url)
}

// warmUp visits the site root so the jar picks up session cookies.
// The response is discarded; only a transport error fails the attempt.
func (c *Client) warmUp(ctx context.Context, session *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.Host, nil)
	if err != nil {
		return fmt.Errorf("failed to create GET request: %w", err)
	}
	req.Header = c.headers.Clone()

	resp, err := session.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("failed to read warm-up body: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, session *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	req.Header = c.headers.Clone()

	resp, err := session.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return body, nil
}

// diagnose tells "site blocking us" apart from "no connectivity at all"
func (c *Client) diagnose(ctx context.Context) bool {
	if c.endpoints.DiagnosticURL == "" {
		return false
	}

	session := &http.Client{Transport: c.transport, Timeout: c.retryConfig.Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.DiagnosticURL, nil)
	if err != nil {
		return false
	}

	resp, err := session.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// newHeaders builds a browser-like header set with a random user agent and referer
func (c *Client) newHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("User-Agent", pick(c.endpoints.UserAgents))
	h.Set("Referer", pick(c.endpoints.WarmupURLs))
	return h
}

// CurrentHeaders returns a copy of the header set of the last request
func (c *Client) CurrentHeaders() http.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.headers.Clone()
}

func pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.Intn(len(pool))]
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

// StatusError is a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// ConnectionError is returned once every attempt has failed
type ConnectionError struct {
	URL       string
	Attempts  int
	Reachable bool // diagnostic host answered
	Err       error
}

func (e *ConnectionError) Error() string {
	reason := "cannot connect to internet"
	if e.Reachable {
		reason = "site refused requests, try slowing down"
	}
	return fmt.Sprintf("%s after %d attempts (%s): %v", e.URL, e.Attempts, reason, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{apperrors.ErrConnectivity, e.Err}
}
