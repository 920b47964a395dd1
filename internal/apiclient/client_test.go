package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
)

type staticCSRF struct {
	name, token string
	ok          bool
}

func (s staticCSRF) CSRFHeader(context.Context) (string, string, bool) { return s.name, s.token, s.ok }

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: serverURL + "/api"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	c.initialBackoff = time.Millisecond
	c.maxBackoff = 5 * time.Millisecond
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("Expected error for empty base URL")
	}
	if _, err := New(Config{BaseURL: "ftp://example.com"}); err == nil {
		t.Error("Expected error for non-http scheme")
	}

	c, err := New(Config{BaseURL: "http://localhost:8080/api/"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if c.BaseURL() != "http://localhost:8080/api" {
		t.Errorf("Expected trailing slash trimmed, got %q", c.BaseURL())
	}
	if got := c.resolve("/collection/3", nil); got != "http://localhost:8080/api/collection/3" {
		t.Errorf("Unexpected resolved URL %q", got)
	}
}

func TestClient_CSRFHeaderOnlyOnMutatingCalls(t *testing.T) {
	var getHeader, postHeader atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			getHeader.Store(r.Header.Get("X-XSRF-TOKEN"))
		case http.MethodPost:
			postHeader.Store(r.Header.Get("X-XSRF-TOKEN"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.SetCSRFSource(staticCSRF{name: "X-XSRF-TOKEN", token: "abc", ok: true})
	ctx := context.Background()

	if err := c.Get(ctx, "/collection", nil, nil); err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	if err := c.Post(ctx, "/collection", map[string]string{"a": "b"}, nil); err != nil {
		t.Fatalf("POST failed: %v", err)
	}

	if got := getHeader.Load().(string); got != "" {
		t.Errorf("Expected no CSRF header on GET, got %q", got)
	}
	if got := postHeader.Load().(string); got != "abc" {
		t.Errorf("Expected CSRF header on POST, got %q", got)
	}
}

func TestClient_NoCSRFHeaderWhenTokenAbsent(t *testing.T) {
	var header atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("X-XSRF-TOKEN"))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Invalid CSRF token"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.SetCSRFSource(staticCSRF{name: "X-XSRF-TOKEN"})

	err := c.Delete(context.Background(), "/collection/1")
	if got := header.Load().(string); got != "" {
		t.Errorf("Expected no CSRF header, got %q", got)
	}
	if apperror.KindOf(err) != apperror.ServerRejected {
		t.Fatalf("Expected ServerRejected, got %v", err)
	}
	if msg := apperror.UserMessage(err); msg != "Invalid CSRF token" {
		t.Errorf("Expected message from body, got %q", msg)
	}
}

func TestClient_UnauthorizedHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	var calls atomic.Int32
	c.OnUnauthorized(func() { calls.Add(1) })
	ctx := context.Background()

	err := c.Get(ctx, "/collection", nil, nil)
	if !apperror.IsUnauthenticated(err) {
		t.Fatalf("Expected Unauthenticated, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected hook to run once, ran %d times", calls.Load())
	}

	_, err = c.Do(ctx, Request{Method: http.MethodGet, Path: "/auth/me", Anonymous: true})
	if !apperror.IsUnauthenticated(err) {
		t.Fatalf("Expected Unauthenticated, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected anonymous call not to run hook, ran %d times", calls.Load())
	}
	if c.Metrics().Summary().Unauthorized != 2 {
		t.Errorf("Expected 2 unauthorized responses counted")
	}
}

func TestClient_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	var out []string
	if err := c.Get(context.Background(), "/collection", nil, &out); err != nil {
		t.Fatalf("Expected nil error on 204, got %v", err)
	}
	if out != nil {
		t.Errorf("Expected output untouched on 204, got %v", out)
	}
}

func TestClient_RateLimitRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Pikachu"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	var out struct {
		Name string `json:"name"`
	}
	if err := c.Get(context.Background(), "/pokemon/cards/x", nil, &out); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if out.Name != "Pikachu" {
		t.Errorf("Expected decoded body, got %+v", out)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.Delete(context.Background(), "/collection/99")
	if !apperror.IsNotFound(err) {
		t.Fatalf("Expected NotFound, got %v", err)
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, url)
	err := c.Post(context.Background(), "/auth/logout", nil, nil)
	if !apperror.IsNetwork(err) {
		t.Fatalf("Expected Network error, got %v", err)
	}
	if !apperror.Retryable(err) {
		t.Error("Expected network errors to be retryable")
	}
}

func TestClient_CookiesRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "s1", Path: "/"})
			return
		}
		if ck, err := r.Cookie("SESSION"); err != nil || ck.Value != "s1" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	ctx := context.Background()
	if err := c.Post(ctx, "/auth/login", nil, nil); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := c.Get(ctx, "/auth/me", nil, nil); err != nil {
		t.Fatalf("Expected cookie to be sent, got %v", err)
	}
	if got := c.Cookies(); len(got) != 1 || got[0].Value != "s1" {
		t.Fatalf("Expected SESSION cookie in jar, got %v", got)
	}

	c.ClearCookies()
	if len(c.Cookies()) != 0 {
		t.Fatal("Expected jar to be empty after ClearCookies")
	}

	c.RestoreCookies([]*http.Cookie{{Name: "SESSION", Value: "s1"}})
	if err := c.Get(ctx, "/auth/me", nil, nil); err != nil {
		t.Fatalf("Expected restored cookie to be sent, got %v", err)
	}
}

func TestEndpointKey(t *testing.T) {
	tests := map[string]string{
		"/collection":              "/collection",
		"/collection/12":           "/collection/{id}",
		"/pokemon/cards/swsh3-136": "/pokemon/cards/swsh3-136",
		"/collection/12/notes":     "/collection/{id}/notes",
	}
	for in, want := range tests {
		if got := endpointKey(in); got != want {
			t.Errorf("endpointKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{``, ""},
		{`{"message":"Quantity must be at least 1"}`, "Quantity must be at least 1"},
		{`{"error":"Bad Request"}`, "Bad Request"},
		{`{"status":500}`, ""},
		{`plain failure`, "plain failure"},
		{`<html>oops</html>`, ""},
	}
	for _, tt := range tests {
		if got := extractMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("extractMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
