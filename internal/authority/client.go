package authority

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
	"strings"
	"sync"
	"time"

	"github.com/teemow/agentcourier/internal/instrumentation"
	"github.com/teemow/agentcourier/internal/logging"
)

const (
	// DefaultHealthTTL is how long a health probe result stays fresh.
	DefaultHealthTTL = 60 * time.Second

	// DefaultBaseDelay is the base wait between retry attempts.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxRetries is the retry budget after the initial attempt.
	DefaultMaxRetries = 3

	// DefaultCallTimeout bounds a single transport attempt.
	DefaultCallTimeout = 10 * time.Second
)

// Config holds the settings for a backend authority client.
type Config struct {
	// BaseURL is the root of the backend authority, e.g. "https://api.example.com".
	BaseURL string

	// HTTPClient is the underlying transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// HealthTTL is how long a probe result is trusted before re-probing.
	HealthTTL time.Duration

	// BaseDelay is the base retry delay. Rate-limit retries scale it by the
	// attempt index; other transient retries use it as a fixed wait.
	BaseDelay time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// CallTimeout bounds each individual transport attempt.
	CallTimeout time.Duration

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Client performs calls against one backend authority under a health gate
// and a bounded retry policy. A single instance is shared process-wide by
// the composition root; it is safe for concurrent use.
type Client struct {
	baseURL     string
	http        *http.Client
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	healthTTL   time.Duration
	baseDelay   time.Duration
	maxRetries  int
	callTimeout time.Duration

	healthMu    sync.Mutex
	healthy     bool
	lastChecked time.Time

	// replaceable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for the backend at the given base URL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL must not be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.HealthTTL <= 0 {
		cfg.HealthTTL = DefaultHealthTTL
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &instrumentation.Metrics{}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		http:        cfg.HTTPClient,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		healthTTL:   cfg.HealthTTL,
		baseDelay:   cfg.BaseDelay,
		maxRetries:  cfg.MaxRetries,
		callTimeout: cfg.CallTimeout,
		now:         time.Now,
		sleep:       sleepContext,
	}, nil
}

// MarkUnhealthy forces the health gate closed until the next successful
// probe. The next operation re-probes regardless of TTL.
func (c *Client) MarkUnhealthy() {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	c.healthy = false
}

// Healthy reports the current gate state without probing.
func (c *Client) Healthy() bool {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	return c.healthy
}

// execute runs one backend operation under the health gate and retry policy.
// Retries are scoped to this invocation: once execute returns, nothing is
// resurrected. Context cancellation aborts both waits and attempts.
func (c *Client) execute(ctx context.Context, op string, attempt func(ctx context.Context) error) error {
	start := c.now()
	err := c.executeGated(ctx, op, attempt)

	status := logging.StatusSuccess
	if err != nil {
		status = logging.StatusError
	}
	c.metrics.RecordBackendOperation(ctx, op, status, c.now().Sub(start))

	return err
}

func (c *Client) executeGated(ctx context.Context, op string, attempt func(ctx context.Context) error) error {
	if err := c.ensureHealthy(ctx, op); err != nil {
		return err
	}

	attempts := c.maxRetries + 1
	var lastErr *Error

	for i := 1; i <= attempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		err := attempt(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}

		lastErr = c.asError(op, err)
		if !lastErr.Kind.Retryable() || i == attempts {
			return lastErr
		}

		// Rate limiting backs off harder on each successive attempt;
		// plain transport transience waits a fixed base delay.
		delay := c.baseDelay
		if lastErr.Kind == KindRateLimited {
			delay = c.baseDelay * time.Duration(i)
		}

		c.logger.Debug("retrying backend operation",
			logging.Operation(op),
			logging.Attempt(i),
			slog.String("kind", lastErr.Kind.String()),
			slog.Duration("delay", delay),
		)
		c.metrics.RecordBackendRetry(ctx, op, lastErr.Kind.String())

		if err := c.sleep(ctx, delay); err != nil {
			return c.asError(op, err)
		}
	}

	return lastErr
}

// ensureHealthy re-probes the backend when the cached result is stale or the
// gate is closed. A failed probe fails the operation immediately with
// ServiceUnavailable; the operation's own retry budget is untouched.
func (c *Client) ensureHealthy(ctx context.Context, op string) error {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	now := c.now()
	if c.healthy && now.Sub(c.lastChecked) <= c.healthTTL {
		return nil
	}

	err := c.probe(ctx)
	c.healthy = err == nil
	c.lastChecked = now

	if err != nil {
		c.logger.Warn("backend health probe failed",
			logging.Operation(op),
			logging.Err(err),
		)
		c.metrics.RecordHealthProbe(ctx, logging.StatusError)
		return &Error{Kind: KindServiceUnavailable, Op: op, Detail: "health probe failed", Err: err}
	}

	c.metrics.RecordHealthProbe(ctx, logging.StatusSuccess)
	return nil
}

// probe performs the lightweight health call.
func (c *Client) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("health endpoint returned malformed body: %w", err)
	}
	switch body.Status {
	case "ok", "healthy":
		return nil
	default:
		return fmt.Errorf("health endpoint reported status %q", body.Status)
	}
}

// asError normalizes any failure into a classified *Error for the operation.
func (c *Client) asError(op string, err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		if be.Op == "" {
			be.Op = op
		}
		return be
	}

	kind := classifyTransport(err)
	detail := ""
	if kind == KindUnknown {
		detail = err.Error()
	}
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

// get issues a GET request with query parameters and decodes a JSON response.
func (c *Client) get(ctx context.Context, path string, query url.Values, headers http.Header, out any) error {
	return c.roundTrip(ctx, http.MethodGet, path, query, nil, headers, out)
}

// post issues a POST request with a JSON body and decodes a JSON response.
func (c *Client) post(ctx context.Context, path string, query url.Values, body any, headers http.Header, out any) error {
	return c.roundTrip(ctx, http.MethodPost, path, query, body, headers, out)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any, headers http.Header, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindUnknown, Detail: "failed to encode request body", Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return &Error{Kind: KindUnknown, Detail: "failed to build request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindUnknown, Detail: "failed to decode response body", Err: err}
	}
	return nil
}

// statusError builds a classified error from a non-2xx response, pulling the
// detail message out of the standard error body shape when present.
func (c *Client) statusError(resp *http.Response) *Error {
	var body struct {
		Message string `json:"message"`
		ErrMsg  string `json:"error"`
		Detail  string `json:"detail"`
	}
	// Best effort: an unreadable error body still classifies by status
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)

	detail := body.Message
	if detail == "" {
		detail = body.ErrMsg
	}
	if detail == "" {
		detail = body.Detail
	}

	kind := classifyStatus(resp.StatusCode)
	if kind == KindUnknown && detail == "" {
		detail = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return &Error{Kind: kind, Detail: detail}
}

// sleepContext waits for the duration or until the context is done.
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
