package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"docentgo/pkg/logging"
	"docentgo/pkg/tracker"
	"docentgo/pkg/version"
)

var (
	defaultUserAgent = fmt.Sprintf("Docent Kiosk (docentgo/%s)", version.Version)
)

// StatusError is returned when the server answers with a non-success status.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api error: status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("api error: status %d", e.Code)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// ClientConfig tunes retries and pacing.
type ClientConfig struct {
	Retries   int           // total attempts for retryable calls
	BaseDelay time.Duration // first retry delay
	MaxDelay  time.Duration
	RateLimit float64 // requests per second per host, 0 disables
	Timeout   time.Duration
	UserAgent string
}

// DefaultClientConfig mirrors the defaults in config.RequestConfig.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Retries:   3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		RateLimit: 10,
		Timeout:   30 * time.Second,
	}
}

// Response is an unprocessed HTTP answer used by diagnostics.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Client handles HTTP requests with per-host pacing, retries, and tracking.
type Client struct {
	httpClient *http.Client
	tracker    *tracker.Tracker
	backoff    *ProviderBackoff
	cfg        ClientConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a new Client.
func New(t *tracker.Tracker, cfg ClientConfig) *Client {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if t == nil {
		t = tracker.New()
	}
	return &Client{
		// Streaming responses outlive cfg.Timeout, so per-call deadlines come from ctx.
		httpClient: &http.Client{},
		tracker:    t,
		backoff:    NewProviderBackoff(cfg.BaseDelay, cfg.MaxDelay),
		cfg:        cfg,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Tracker returns the tracker the client reports to.
func (c *Client) Tracker() *tracker.Tracker {
	return c.tracker
}

// Get performs a GET request with retries.
func (c *Client) Get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil, headers)
}

// Post performs a POST request with retries.
func (c *Client) Post(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, headers)
}

// PostJSON marshals payload and POSTs it with a JSON content type.
func (c *Client) PostJSON(ctx context.Context, u string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return c.do(ctx, http.MethodPost, u, body, h)
}

// Stream issues a single attempt and hands back the open response.
// The caller owns resp.Body. Non-2xx answers are returned as *StatusError.
func (c *Client) Stream(ctx context.Context, method, u string, body []byte, headers map[string]string) (*http.Response, error) {
	req, host, err := c.newRequest(ctx, method, u, body, headers)
	if err != nil {
		return nil, err
	}
	if err := c.limiter(host).Wait(ctx); err != nil {
		return nil, err
	}

	logging.RequestLogger.Info("Stream Request", "method", method, "url", u)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.tracker.TrackAPIFailure(host)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		c.tracker.TrackAPIFailure(host)
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(snippet)}
	}
	c.tracker.TrackAPISuccess(host)
	return resp, nil
}

// Raw performs a single GET and returns whatever the server said, any status.
func (c *Client) Raw(ctx context.Context, u string, headers map[string]string) (*Response, error) {
	req, host, err := c.newRequest(ctx, http.MethodGet, u, nil, headers)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	logging.RequestLogger.Info("Raw Request", "host", host, "url", u, "status", resp.StatusCode, "bytes", len(body))
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, u string, body []byte, headers map[string]string) (*http.Request, string, error) {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return nil, "", fmt.Errorf("invalid url: %q", u)
	}

	var rdr io.Reader = http.NoBody
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	uaMatch := false
	for k, v := range headers {
		req.Header.Set(k, v)
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			uaMatch = true
		}
	}
	if !uaMatch {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	return req, parsed.Host, nil
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[host]
	if !ok {
		limit := rate.Inf
		if c.cfg.RateLimit > 0 {
			limit = rate.Limit(c.cfg.RateLimit)
		}
		l = rate.NewLimiter(limit, 1)
		c.limiters[host] = l
	}
	return l
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, headers map[string]string) ([]byte, error) {
	req, host, err := c.newRequest(ctx, method, u, body, headers)
	if err != nil {
		return nil, err
	}

	out, err := c.executeWithBackoff(req, host, body)
	if err != nil {
		c.tracker.TrackAPIFailure(host)
		c.backoff.RecordFailure(host)
		return nil, err
	}
	c.tracker.TrackAPISuccess(host)
	c.backoff.RecordSuccess(host)
	return out, nil
}

// executeWithBackoff attempts the request with exponential backoff on retryable errors.
func (c *Client) executeWithBackoff(req *http.Request, host string, body []byte) ([]byte, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		if attempt > 0 {
			c.tracker.TrackRetry(host)
			if err := sleep(ctx, c.backoff.Delay(attempt)); err != nil {
				return nil, err
			}
		}
		if err := c.backoff.Wait(ctx, host); err != nil {
			return nil, err
		}
		if err := c.limiter(host).Wait(ctx); err != nil {
			return nil, err
		}

		attemptReq := req.Clone(ctx)
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
		}

		start := time.Now()
		out, retry, err := c.attempt(attemptReq)
		logging.RequestLogger.Info("Network Request",
			"method", req.Method,
			"host", host,
			"path", req.URL.Path,
			"attempt", attempt+1,
			"duration", time.Since(start),
			"error", err)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retry {
			return nil, err
		}
		slog.Warn("Request failed, retrying", "url", req.URL.String(), "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) attempt(req *http.Request) (body []byte, retry bool, err error) {
	ctx, cancel := c.withTimeout(req.Context())
	defer cancel()

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, true, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(snippet)}
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(snippet)}
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read error: %w", err)
	}
	return out, false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
