package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/apitest"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/events"
)

type recorder struct {
	mu     sync.Mutex
	events []events.SessionChangedEvent
}

func (r *recorder) observer() events.Observer {
	return events.NewFuncObserver("recorder", func(e events.Event) error {
		if p, ok := events.GetTypedData[events.SessionChangedEvent](e); ok {
			r.mu.Lock()
			r.events = append(r.events, p)
			r.mu.Unlock()
		}
		return nil
	}, events.SessionChanged)
}

func (r *recorder) reasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Reason
	}
	return out
}

func waitReady(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

func TestManager_ProbeRejected(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	rec := &recorder{}
	dispatcher := events.NewEventDispatcher(nil)
	dispatcher.Register(rec.observer())

	m := NewManager(NewClient(newAPI(t, server.URL+"/api"), Options{}), dispatcher, nil)
	if !m.IsLoading() {
		t.Fatal("Expected IsLoading before the probe resolves")
	}

	m.Start(context.Background())
	if !m.IsLoading() {
		t.Error("Expected IsLoading while the probe is in flight")
	}
	close(release)
	waitReady(t, m)

	if m.IsLoading() {
		t.Error("Expected IsLoading false after resolution")
	}
	s := m.Session()
	if s.Authenticated || s.User != nil {
		t.Errorf("Expected unauthenticated session without user, got %+v", s)
	}
	if got := rec.reasons(); len(got) != 1 || got[0] != events.ReasonProbe {
		t.Errorf("Expected one probe event, got %v", got)
	}

	// Later transitions never bring the loading flag back.
	m.Logout(context.Background())
	if m.IsLoading() {
		t.Error("Expected IsLoading to stay false")
	}
}

func TestManager_LoginLogoutNotifySynchronously(t *testing.T) {
	backend := apitest.New(t)
	rec := &recorder{}
	dispatcher := events.NewEventDispatcher(nil)
	dispatcher.Register(rec.observer())

	m := NewManager(NewClient(newAPI(t, backend.BaseURL()), Options{}), dispatcher, nil)
	m.Start(context.Background())
	waitReady(t, m)
	ctx := context.Background()

	s, err := m.Login(ctx, testCreds)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !s.Authenticated || s.Username() != apitest.Email {
		t.Fatalf("Unexpected session %+v", s)
	}
	if got := rec.reasons(); len(got) != 2 || got[1] != events.ReasonLogin {
		t.Fatalf("Expected login event before Login returned, got %v", got)
	}

	m.Logout(ctx)
	if got := rec.reasons(); len(got) != 3 || got[2] != events.ReasonLogout {
		t.Fatalf("Expected logout event before Logout returned, got %v", got)
	}
	if m.Session().Authenticated {
		t.Error("Expected signed-out session")
	}
}

func TestManager_LoginFailureLeavesSession(t *testing.T) {
	backend := apitest.New(t)
	m := NewManager(NewClient(newAPI(t, backend.BaseURL()), Options{}), nil, nil)
	m.Start(context.Background())
	waitReady(t, m)

	s, err := m.Login(context.Background(), Credentials{Email: apitest.Email, Password: "nope"})
	if err == nil {
		t.Fatal("Expected login to fail")
	}
	if s.Authenticated {
		t.Error("Expected session unchanged after failed login")
	}
}

func TestManager_UnauthorizedForcesSignOut(t *testing.T) {
	backend := apitest.New(t)
	rec := &recorder{}
	dispatcher := events.NewEventDispatcher(nil)
	dispatcher.Register(rec.observer())

	client := NewClient(newAPI(t, backend.BaseURL()), Options{})
	m := NewManager(client, dispatcher, nil)
	m.Start(context.Background())
	waitReady(t, m)
	ctx := context.Background()

	if _, err := m.Login(ctx, testCreds); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	backend.Store.ExpireSessions(apitest.Email)
	err := client.API().Get(ctx, "/collection", nil, nil)
	if !apperror.IsUnauthenticated(err) {
		t.Fatalf("Expected Unauthenticated, got %v", err)
	}

	if m.Session().Authenticated {
		t.Error("Expected 401 to force a sign-out")
	}
	got := rec.reasons()
	if len(got) == 0 || got[len(got)-1] != events.ReasonExpired {
		t.Errorf("Expected expired event, got %v", got)
	}

	// A second 401 while signed out does not publish again.
	_ = client.API().Get(ctx, "/collection", nil, nil)
	if len(rec.reasons()) != len(got) {
		t.Error("Expected no duplicate expiry event")
	}
}

func TestManager_LateProbeDoesNotOverrideLogin(t *testing.T) {
	backend := apitest.New(t)
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.Handle("/", backend.Server.Config.Handler)
	server := httptest.NewServer(mux)
	defer server.Close()

	m := NewManager(NewClient(newAPI(t, server.URL+"/api"), Options{}), nil, nil)
	m.Start(context.Background())

	if _, err := m.Login(context.Background(), testCreds); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	close(release)
	waitReady(t, m)

	if !m.Session().Authenticated {
		t.Error("Expected the stale probe result to be discarded")
	}
}
