// Package session owns the authentication lifecycle: probing an existing
// cookie session, login and logout, and the anti-forgery token attached to
// every mutating request.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apiclient"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
)

const (
	pathMe       = "/auth/me"
	pathCSRF     = "/auth/csrf-token"
	pathLogin    = "/auth/login"
	pathLogout   = "/auth/logout"
	pathRegister = "/auth/register"

	defaultCookieTTL = 24 * time.Hour
	storeTimeout     = 5 * time.Second
)

// CookieStore persists the session cookie between process runs.
type CookieStore interface {
	Save(ctx context.Context, baseURL string, cookies []*http.Cookie, expires time.Time) error
	Load(ctx context.Context, baseURL string) ([]*http.Cookie, error)
	Clear(ctx context.Context, baseURL string) error
}

// Options configures a Client.
type Options struct {
	// Store persists cookies. Nil keeps the session in memory only.
	Store CookieStore

	// CookieTTL is how long a persisted cookie is trusted. Default: 24h.
	CookieTTL time.Duration

	Logger *slog.Logger
}

// Client performs the session operations against the backend and holds the
// CSRF token. It installs itself as the API client's CSRF source.
type Client struct {
	api    *apiclient.Client
	store  CookieStore
	ttl    time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	user *User
	csrf *CSRFToken
	// generation increments on every session transition. A token fetched
	// under an older generation is dropped.
	generation uint64
}

// NewClient creates a session client on top of api.
func NewClient(api *apiclient.Client, opts Options) *Client {
	if opts.CookieTTL <= 0 {
		opts.CookieTTL = defaultCookieTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Client{
		api:    api,
		store:  opts.Store,
		ttl:    opts.CookieTTL,
		logger: opts.Logger.With("component", "session"),
	}
	api.SetCSRFSource(c)
	return c
}

// API returns the underlying HTTP client.
func (c *Client) API() *apiclient.Client {
	return c.api
}

// Session returns the client's current view of the session.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := unauthenticated()
	if c.user != nil {
		u := *c.user
		s.Authenticated = true
		s.User = &u
	}
	if c.csrf != nil {
		s.CSRFToken = c.csrf.Token
		s.CSRFHeaderName = c.csrf.HeaderName
	}
	return s
}

// Restore loads persisted cookies into the HTTP client. A store failure is
// logged and leaves the jar empty.
func (c *Client) Restore(ctx context.Context) {
	if c.store == nil {
		return
	}
	cookies, err := c.store.Load(ctx, c.api.BaseURL())
	if err != nil {
		c.logger.Warn("Failed to restore session cookies", "error", err)
		return
	}
	if len(cookies) > 0 {
		c.api.RestoreCookies(cookies)
		c.logger.Debug("Restored session cookies", "count", len(cookies))
	}
}

// Probe asks the backend whether the current cookie denotes a live session.
// Every failure, including network errors, yields the signed-out state. A
// probe overtaken by a login or logout leaves the newer state untouched.
func (c *Client) Probe(ctx context.Context) Session {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	var user User
	_, err := c.api.Do(ctx, apiclient.Request{
		Method:    http.MethodGet,
		Path:      pathMe,
		Out:       &user,
		Anonymous: true,
	})
	if err == nil && user.Username == "" {
		user.Username = user.Email
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		c.api.Metrics().StaleDiscards.Add(1)
		return c.Session()
	}
	if err != nil || user.Username == "" {
		c.generation++
		c.user = nil
		c.csrf = nil
		c.mu.Unlock()
		if err != nil {
			c.logger.Debug("Session probe failed", "error", err)
		}
		// Only a definite rejection invalidates the stored cookie; the
		// backend may just be unreachable.
		if apperror.IsUnauthenticated(err) {
			c.clearStore(ctx)
		}
		return c.Session()
	}
	c.user = &user
	c.mu.Unlock()

	c.persist(ctx)
	return c.Session()
}

// AcquireCSRFToken fetches a fresh token for the current session and holds
// it for subsequent mutating requests. On failure the held token is dropped,
// so no header is attached until a later fetch succeeds.
func (c *Client) AcquireCSRFToken(ctx context.Context) (CSRFToken, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	tok, err := c.fetchCSRF(ctx, gen)
	if err != nil {
		c.mu.Lock()
		if c.generation == gen {
			c.csrf = nil
		}
		c.mu.Unlock()
		return CSRFToken{}, err
	}
	return tok, nil
}

// CSRFHeader implements apiclient.CSRFSource. It fetches a token when none
// is held.
func (c *Client) CSRFHeader(ctx context.Context) (string, string, bool) {
	c.mu.Lock()
	tok, gen := c.csrf, c.generation
	c.mu.Unlock()
	if tok != nil {
		return tok.HeaderName, tok.Token, true
	}

	fresh, err := c.fetchCSRF(ctx, gen)
	if err != nil {
		return "", "", false
	}
	return fresh.HeaderName, fresh.Token, true
}

func (c *Client) fetchCSRF(ctx context.Context, gen uint64) (CSRFToken, error) {
	var tok CSRFToken
	_, err := c.api.Do(ctx, apiclient.Request{
		Method:    http.MethodGet,
		Path:      pathCSRF,
		Out:       &tok,
		Anonymous: true,
	})
	if err == nil && tok.Token == "" {
		err = apperror.NewServerRejected(http.StatusOK, "server returned an empty CSRF token")
	}
	if err != nil {
		c.logger.Warn("Failed to acquire CSRF token", "error", err)
		return CSRFToken{}, err
	}
	if tok.HeaderName == "" {
		tok.HeaderName = DefaultCSRFHeaderName
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		c.api.Metrics().StaleDiscards.Add(1)
		c.logger.Debug("Discarding CSRF token fetched before a session transition")
		return CSRFToken{}, apperror.NewStale("CSRF token")
	}
	c.csrf = &tok
	return tok, nil
}

// Login authenticates with the backend, then refreshes the CSRF token
// before returning. A token refresh failure is logged, not returned. The
// token held before the call is dropped whatever the outcome and is never
// sent with the credentials.
func (c *Client) Login(ctx context.Context, creds Credentials) (Session, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return Session{}, apperror.NewValidation("email and password are required")
	}

	c.mu.Lock()
	c.generation++
	c.csrf = nil
	c.mu.Unlock()

	var resp authResponse
	_, err := c.api.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      pathLogin,
		Body:      creds,
		Out:       &resp,
		Anonymous: true,
		SkipCSRF:  true,
	})
	if err != nil {
		return Session{}, err
	}

	user := User{Username: resp.Username, Email: resp.Email}
	if user.Email == "" {
		user.Email = creds.Email
	}
	if user.Username == "" {
		user.Username = user.Email
	}

	c.mu.Lock()
	c.generation++
	c.csrf = nil
	c.user = &user
	c.mu.Unlock()

	if _, err := c.AcquireCSRFToken(ctx); err != nil && !errors.Is(err, apperror.ErrStaleResponse) {
		c.logger.Warn("Signed in without a CSRF token", "error", err)
	}
	c.persist(ctx)
	c.logger.Info("Signed in", "user", user.Username)
	return c.Session(), nil
}

// Logout posts to the logout endpoint and clears all local session state
// whatever the outcome. It never fails.
func (c *Client) Logout(ctx context.Context) {
	// The CSRF source fetches a token here when none is held.
	_, err := c.api.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      pathLogout,
		Anonymous: true,
	})
	if err != nil {
		c.logger.Info("Logout request failed, clearing local session anyway", "error", err)
	}

	c.reset()
	c.api.ClearCookies()
	c.clearStore(ctx)
	c.logger.Info("Signed out")
}

// Expire clears local state after the backend rejected the session. No
// request is sent.
func (c *Client) Expire(ctx context.Context) {
	c.reset()
	c.api.ClearCookies()
	c.clearStore(ctx)
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, reg Registration) (User, error) {
	if strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
		return User{}, apperror.NewValidation("email and password are required")
	}

	var resp authResponse
	_, err := c.api.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      pathRegister,
		Body:      reg,
		Out:       &resp,
		Anonymous: true,
		SkipCSRF:  true,
	})
	if err != nil {
		return User{}, err
	}

	user := User{Username: resp.Username, Email: reg.Email}
	if user.Username == "" {
		user.Username = reg.Email
	}
	return user, nil
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.user = nil
	c.csrf = nil
}

func (c *Client) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	cookies := c.api.Cookies()
	if len(cookies) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := c.store.Save(ctx, c.api.BaseURL(), cookies, time.Now().Add(c.ttl)); err != nil {
		c.logger.Warn("Failed to persist session cookies", "error", err)
	}
}

func (c *Client) clearStore(ctx context.Context) {
	if c.store == nil {
		return
	}
	// The caller's context may already be done, e.g. a logout that timed out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := c.store.Clear(ctx, c.api.BaseURL()); err != nil {
		c.logger.Warn("Failed to clear persisted session cookies", "error", err)
	}
}
