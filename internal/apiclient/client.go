// Package apiclient is the one HTTP client used to talk to the collection
// backend. It attaches credentials (a shared cookie jar), attaches the
// anti-forgery header on mutating calls, maps HTTP 401 to a sign-out signal,
// and translates every other outcome into an *apperror.Error.
package apiclient

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
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/metrics"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultUserAgent  = "TCG-Collection-Tracker/1.0"
	defaultMaxRetries = 2
	initialBackoff    = 500 * time.Millisecond
	maxBackoff        = 8 * time.Second
	maxBodySize       = 10 << 20
)

// CSRFSource supplies the anti-forgery header for mutating requests. It is
// called before each mutating request is sent and may fetch a token. ok is
// false when no token could be obtained, in which case no header is attached
// and the backend is left to reject the call.
type CSRFSource interface {
	CSRFHeader(ctx context.Context) (name, token string, ok bool)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, including the /api prefix.
	BaseURL string

	// Timeout bounds a single HTTP attempt. Default: 15s.
	Timeout time.Duration

	// RateLimit is the minimum interval between requests. Zero disables limiting.
	RateLimit time.Duration

	// MaxRetries is the number of extra attempts on 429 (any method) and on
	// network errors (GET only). Negative disables retries. Default: 2.
	MaxRetries int

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper

	Metrics *metrics.RequestMetrics
	Logger  *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	jar         *sessionJar
	rateLimiter *rate.Limiter
	userAgent   string
	maxRetries  int
	metrics     *metrics.RequestMetrics
	logger      *slog.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu             sync.RWMutex
	csrf           CSRFSource
	onUnauthorized func()
}

// New creates a client for the API at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewRequestMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}

	jar := newSessionJar()
	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       jar,
			Transport: cfg.Transport,
		},
		jar:            jar,
		rateLimiter:    rate.NewLimiter(limit, 1),
		userAgent:      cfg.UserAgent,
		maxRetries:     cfg.MaxRetries,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.With("component", "apiclient"),
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}, nil
}

// SetCSRFSource installs the source of the anti-forgery header.
func (c *Client) SetCSRFSource(src CSRFSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.csrf = src
}

// OnUnauthorized installs the callback run whenever a protected request
// receives HTTP 401. It runs before the request returns.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// Metrics returns the collector the client records into.
func (c *Client) Metrics() *metrics.RequestMetrics {
	return c.metrics
}

// BaseURL returns the API root as a string.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Cookies returns the cookies the jar would send to the API root.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.cookieURL())
}

// RestoreCookies loads previously persisted cookies into the jar.
func (c *Client) RestoreCookies(cookies []*http.Cookie) {
	for _, ck := range cookies {
		if ck.Path == "" {
			ck.Path = "/"
		}
	}
	c.jar.SetCookies(c.cookieURL(), cookies)
}

// ClearCookies drops every credential cookie.
func (c *Client) ClearCookies() {
	c.jar.Reset()
}

func (c *Client) cookieURL() *url.URL {
	return &url.URL{Scheme: c.baseURL.Scheme, Host: c.baseURL.Host, Path: "/"}
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string // relative to the base URL, e.g. "/collection/12"
	Query  url.Values
	Body   any // JSON-encoded when non-nil
	Out    any // JSON-decoded into when non-nil and the body is non-empty

	// Anonymous marks calls that are part of establishing a session (probe,
	// login, register, csrf). A 401 on them does not trigger the sign-out hook.
	Anonymous bool

	// SkipCSRF sends a mutating request without the CSRF header.
	SkipCSRF bool
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Out: out})
	return err
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Out: out})
	return err
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, Out: out})
	return err
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
	return err
}

// Do performs the request with rate limiting and retry logic and returns the
// final HTTP status. Errors are always *apperror.Error.
func (c *Client) Do(ctx context.Context, r Request) (int, error) {
	target := c.resolve(r.Path, r.Query)
	endpoint := r.Method + " " + endpointKey(r.Path)

	var payload []byte
	if r.Body != nil {
		var err error
		if payload, err = json.Marshal(r.Body); err != nil {
			return 0, apperror.NewValidationf("encode request body: %v", err)
		}
	}

	requestID := uuid.NewString()
	backoff := c.initialBackoff
	retries := c.maxRetries

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return 0, apperror.NewNetwork(fmt.Errorf("rate limiter: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, r.Method, target, bodyReader(payload))
		if err != nil {
			return 0, apperror.NewNetwork(fmt.Errorf("create request: %w", err))
		}
		c.setHeaders(ctx, req, payload != nil, requestID, !r.SkipCSRF)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.Observe(endpoint, time.Since(start), true)
			if r.Method == http.MethodGet && attempt < retries && ctx.Err() == nil {
				c.logger.Debug("Retrying after network error", "endpoint", endpoint, "attempt", attempt+1, "error", err)
				c.metrics.Retries.Add(1)
				if sleepErr := sleep(ctx, backoff); sleepErr != nil {
					return 0, apperror.NewNetwork(sleepErr)
				}
				backoff = min(backoff*2, c.maxBackoff)
				continue
			}
			return 0, apperror.NewNetwork(err)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		_ = resp.Body.Close()
		c.metrics.Observe(endpoint, time.Since(start), resp.StatusCode >= 400 || readErr != nil)
		if readErr != nil {
			return resp.StatusCode, apperror.NewNetwork(fmt.Errorf("read response body: %w", readErr))
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if r.Out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
				return resp.StatusCode, nil
			}
			if err := json.Unmarshal(body, r.Out); err != nil {
				return resp.StatusCode, &apperror.Error{
					Kind:    apperror.ServerRejected,
					Status:  resp.StatusCode,
					Message: "server returned an unreadable response",
					Err:     fmt.Errorf("decode %s: %w", endpoint, err),
				}
			}
			return resp.StatusCode, nil

		case resp.StatusCode == http.StatusUnauthorized:
			c.metrics.Unauthorized.Add(1)
			if !r.Anonymous {
				c.logger.Info("Session expired, signing out", "endpoint", endpoint)
				c.signalUnauthorized()
			}
			msg := extractMessage(body)
			if msg == "" {
				msg = "session expired, please sign in again"
			}
			return resp.StatusCode, apperror.NewUnauthenticated(msg)

		case resp.StatusCode == http.StatusNotFound:
			msg := extractMessage(body)
			if msg == "" {
				msg = "resource not found: " + r.Path
			}
			return resp.StatusCode, apperror.NewNotFound(msg)

		case resp.StatusCode == http.StatusTooManyRequests && attempt < retries:
			wait := backoff
			if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				wait = d
			}
			c.logger.Debug("Rate limited, backing off", "endpoint", endpoint, "wait", wait)
			c.metrics.Retries.Add(1)
			if err := sleep(ctx, wait); err != nil {
				return resp.StatusCode, apperror.NewNetwork(err)
			}
			backoff = min(backoff*2, c.maxBackoff)
			continue

		default:
			return resp.StatusCode, apperror.NewServerRejected(resp.StatusCode, extractMessage(body))
		}
	}
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request, hasBody bool, requestID string, withCSRF bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if !withCSRF || !isMutating(req.Method) {
		return
	}

	c.mu.RLock()
	src := c.csrf
	c.mu.RUnlock()
	if src == nil {
		return
	}
	if name, token, ok := src.CSRFHeader(ctx); ok {
		req.Header.Set(name, token)
	}
}

func (c *Client) signalUnauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func bodyReader(payload []byte) io.Reader {
	if payload == nil {
		return nil
	}
	return bytes.NewReader(payload)
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// endpointKey collapses numeric path segments so metrics group by route.
func endpointKey(path string) string {
	return numericSegment.ReplaceAllString(path, "/{id}$1")
}

// extractMessage pulls a user-facing message out of an error body. JSON
// bodies are searched for the usual keys; short plain-text bodies are used
// verbatim.
func extractMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"message", "error", "details", "detail"} {
			if s, ok := fields[key].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}

	if len(body) <= 200 && !bytes.ContainsAny(body, "<>") {
		return string(body)
	}
	return ""
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsCanceled reports whether err stems from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
