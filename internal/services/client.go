package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/xsx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"
)

// Response is a completed 2xx call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Options configures a [Client]. Zero values fall back to the defaults noted on each field.
type Options struct {
	BaseURL             string            // account root, e.g. https://acme.retail.lightspeed.app
	Token               string            // bearer token, required
	Transport           http.RoundTripper // defaults to http.DefaultTransport
	Rates               *RateBook         // shared per-host state, defaults to a private book with DefaultPacing
	MaxAttempts         int               // 5xx and network attempts per call, default 3
	BackoffBase         time.Duration     // first retry delay, doubled per attempt, default 1s
	MaxRateLimitRetries int               // 429 re-sends per call, default 5; negative disables re-sending
	DefaultRetryAfter   time.Duration     // wait when a 429 carries no usable Retry-After, default 60s
	Timeout             time.Duration     // per-request deadline, default 30s
	Concurrency         int               // requests in flight per client, default 1
	Logger              *log.Logger
	Now                 func() time.Time
	Sleep               func(ctx context.Context, d time.Duration) error
}

// OptionsFromConfig builds client options for one account.
func OptionsFromConfig(cfg *shared.Config, acct shared.AccountConfig, rates *RateBook, logger *log.Logger) Options {
	t := cfg.Transport
	return Options{
		BaseURL:             cfg.AccountURL(acct.Domain),
		Token:               acct.Token,
		Rates:               rates,
		MaxAttempts:         t.MaxAttempts,
		BackoffBase:         t.BackoffBase,
		MaxRateLimitRetries: t.MaxRateLimitRetries,
		DefaultRetryAfter:   t.DefaultRetryAfter,
		Timeout:             t.Timeout,
		Concurrency:         t.Concurrency,
		Logger:              logger,
	}
}

// PacingFromConfig returns the pacing section of cfg.
func PacingFromConfig(cfg *shared.Config) Pacing {
	return Pacing{
		BaseDelay:      cfg.Transport.BaseDelay,
		ElevatedFactor: cfg.Transport.ElevatedFactor,
		LowHeadroom:    cfg.Transport.LowHeadroom,
	}
}

// Client executes [RequestPlan]s against one account with pacing, 429 handling and 5xx backoff.
type Client struct {
	baseURL             string
	host                string
	http                *http.Client
	rates               *RateBook
	sem                 *semaphore.Weighted
	maxAttempts         int
	backoffBase         time.Duration
	maxRateLimitRetries int
	defaultRetryAfter   time.Duration
	timeout             time.Duration
	logger              *log.Logger
	now                 func() time.Time
	sleep               func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient returns an [http.Client] that attaches token as a bearer header on every request.
//
// The token lives only inside the oauth2 transport, so nothing in the request pipeline can log it.
func NewHTTPClient(token string, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   base,
		},
	}
}

// NewClient creates a Client from opts.
func NewClient(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("%w: bearer token is required", shared.ErrMissingCredentials)
	}

	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", shared.ErrInvalidConfig, opts.BaseURL)
	}

	if opts.Rates == nil {
		opts.Rates = NewRateBook(DefaultPacing)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.MaxRateLimitRetries == 0 {
		opts.MaxRateLimitRetries = 5
	} else if opts.MaxRateLimitRetries < 0 {
		opts.MaxRateLimitRetries = 0
	}
	if opts.DefaultRetryAfter <= 0 {
		opts.DefaultRetryAfter = 60 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	return &Client{
		baseURL:             strings.TrimRight(opts.BaseURL, "/"),
		host:                u.Host,
		http:                NewHTTPClient(opts.Token, opts.Transport),
		rates:               opts.Rates,
		sem:                 semaphore.NewWeighted(int64(opts.Concurrency)),
		maxAttempts:         opts.MaxAttempts,
		backoffBase:         opts.BackoffBase,
		maxRateLimitRetries: opts.MaxRateLimitRetries,
		defaultRetryAfter:   opts.DefaultRetryAfter,
		timeout:             opts.Timeout,
		logger:              shared.WithLogger(opts.Logger, "host", u.Host),
		now:                 opts.Now,
		sleep:               opts.Sleep,
	}, nil
}

// Host returns the host whose [RateState] this client updates.
func (c *Client) Host() string { return c.host }

// RateState returns the current state of this client's host.
func (c *Client) RateState() RateState { return c.rates.State(c.host) }

// Execute sends plan and returns the 2xx response.
//
// Every attempt is paced by the host's [RateState]. A 429 waits for Retry-After and re-sends
// the same bytes without using up an attempt; 5xx responses and network failures (timeouts
// included) back off 1s, 2s, 4s... until the attempt budget is spent. Any other 4xx returns at once.
// Cancelling ctx stops new attempts and waits; a request already on the wire runs to completion
// or to its own deadline.
func (c *Client) Execute(ctx context.Context, plan RequestPlan) (*Response, error) {
	body, err := plan.encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	target := plan.URL(c.baseURL)
	logger := c.logger.With("method", plan.Method, "path", plan.Version.prefix()+plan.Path)

	attempts, limited := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.wait(ctx, c.rates.Reserve(c.host, c.now())); err != nil {
			return nil, err
		}

		attempts++
		resp, err := c.send(ctx, plan, target, body, logger)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			failure := &APIError{Kind: KindTransport, Method: plan.Method, Path: plan.Version.prefix() + plan.Path, Err: err, Attempts: attempts}
			if attempts >= c.maxAttempts {
				return nil, failure
			}
			delay := c.backoff(attempts)
			logger.Warn("request failed, retrying", "attempt", attempts, "wait", delay, "error", err)
			if err := c.wait(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			attempts--
			limited++
			if limited > c.maxRateLimitRetries {
				failure := newStatusError(plan, resp.StatusCode, resp.Body)
				failure.Attempts = limited
				logger.Error("rate limit retries exhausted", "retries", c.maxRateLimitRetries)
				return nil, failure
			}
			delay := c.retryAfter(resp.Headers)
			logger.Warn("rate limited", "retry", limited, "wait", delay)
			if err := c.wait(ctx, delay); err != nil {
				return nil, err
			}

		case resp.StatusCode >= 500:
			failure := newStatusError(plan, resp.StatusCode, resp.Body)
			failure.Attempts = attempts
			if attempts >= c.maxAttempts {
				logger.Error("server error, giving up", "status", resp.StatusCode, "attempts", attempts)
				return nil, failure
			}
			delay := c.backoff(attempts)
			logger.Warn("server error, retrying", "status", resp.StatusCode, "attempt", attempts, "wait", delay)
			if err := c.wait(ctx, delay); err != nil {
				return nil, err
			}

		case resp.StatusCode >= 400:
			failure := newStatusError(plan, resp.StatusCode, resp.Body)
			logger.Debug("client error", "status", resp.StatusCode, "message", failure.Message)
			return nil, failure

		default:
			return resp, nil
		}
	}
}

// send performs one HTTP exchange. The request deadline is detached from ctx cancellation so a
// write in progress is never torn down mid-body.
func (c *Client) send(ctx context.Context, plan RequestPlan, target string, body []byte, logger *log.Logger) (*Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, plan.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if plan.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", plan.IdempotencyKey)
	}
	// net/http replays a keyed request on a stale keep-alive connection. Without GetBody a
	// write is sent once per attempt and every resend goes through the budget above.
	req.GetBody = nil

	logger.Debug("request", "headers", Redact(req.Header), "body", string(body))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	done := c.now()
	c.rates.Observe(c.host, resp.Header, done)
	c.rates.Complete(c.host, done)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response: %w", readErr)
	}

	logger.Debug("response", "status", resp.StatusCode, "body", truncate(string(data), 500))

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// backoff returns the delay after the given failed attempt: base, 2*base, 4*base...
func (c *Client) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return c.backoffBase << (attempt - 1)
}

// retryAfter reads Retry-After as delta-seconds or an HTTP date. The result is never negative.
func (c *Client) retryAfter(h http.Header) time.Duration {
	d, ok := ParseRetryAfter(h.Get("Retry-After"), c.now())
	if !ok {
		return c.defaultRetryAfter
	}
	return d
}

// ParseRetryAfter parses a Retry-After value relative to now. Both the delta-seconds and the
// HTTP-date forms are accepted; dates in the past yield zero.
func ParseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return 0, true
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(0, at.Sub(now)), true
	}
	return 0, false
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return c.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
