package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/events"
)

// Manager is the process-wide owner of the session. It is the only writer
// of session state; consumers read snapshots through Session and learn
// about transitions through the dispatcher.
type Manager struct {
	client     *Client
	dispatcher *events.EventDispatcher
	logger     *slog.Logger

	mu      sync.RWMutex
	session Session
	loading bool
	// transitions counts login/logout/expiry since Start, so a slow initial
	// probe cannot overwrite a newer state.
	transitions uint64

	ready     chan struct{}
	startOnce sync.Once
}

// NewManager creates a manager around client. A 401 on any protected
// request made through client's API forces a sign-out.
func NewManager(client *Client, dispatcher *events.EventDispatcher, logger *slog.Logger) *Manager {
	if dispatcher == nil {
		dispatcher = events.NewEventDispatcher(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		client:     client,
		dispatcher: dispatcher,
		logger:     logger.With("component", "session-manager"),
		session:    unauthenticated(),
		loading:    true,
		ready:      make(chan struct{}),
	}
	client.API().OnUnauthorized(m.expire)
	return m
}

// Start restores persisted cookies and probes the backend in the
// background. Calls after the first are no-ops.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go m.probe(ctx)
	})
}

func (m *Manager) probe(ctx context.Context) {
	m.client.Restore(ctx)
	s := m.client.Probe(ctx)

	m.mu.Lock()
	applied := m.transitions == 0
	if applied {
		m.session = s
	}
	m.loading = false
	m.mu.Unlock()

	if applied {
		m.dispatch(ctx, s, events.ReasonProbe)
	}
	close(m.ready)
	m.logger.Debug("Initial session probe resolved", "authenticated", s.Authenticated, "applied", applied)
}

// IsLoading reports whether the initial probe is still running. Once false
// it stays false.
func (m *Manager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// Ready is closed when the initial probe resolves.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Wait blocks until the initial probe resolves or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session returns the current session snapshot.
func (m *Manager) Session() Session {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()

	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	cur := m.client.Session()
	s.CSRFToken, s.CSRFHeaderName = cur.CSRFToken, cur.CSRFHeaderName
	return s
}

// Client returns the session client.
func (m *Manager) Client() *Client {
	return m.client
}

// Dispatcher returns the dispatcher session transitions are published on.
func (m *Manager) Dispatcher() *events.EventDispatcher {
	return m.dispatcher
}

// Login signs in and notifies every subscriber before returning. On failure
// the session is unchanged.
func (m *Manager) Login(ctx context.Context, creds Credentials) (Session, error) {
	s, err := m.client.Login(ctx, creds)
	if err != nil {
		return m.Session(), err
	}
	m.set(s)
	m.dispatch(ctx, s, events.ReasonLogin)
	return m.Session(), nil
}

// Logout signs out and notifies every subscriber before returning.
func (m *Manager) Logout(ctx context.Context) {
	m.client.Logout(ctx)
	s := unauthenticated()
	m.set(s)
	m.dispatch(ctx, s, events.ReasonLogout)
}

// Register creates an account without signing in.
func (m *Manager) Register(ctx context.Context, reg Registration) (User, error) {
	return m.client.Register(ctx, reg)
}

// expire runs on HTTP 401 from a protected request.
func (m *Manager) expire() {
	ctx := context.Background()
	m.client.Expire(ctx)

	m.mu.Lock()
	wasAuthenticated := m.session.Authenticated
	m.session = unauthenticated()
	m.transitions++
	m.mu.Unlock()

	if wasAuthenticated {
		m.logger.Info("Session expired")
		m.dispatch(ctx, unauthenticated(), events.ReasonExpired)
	}
}

func (m *Manager) set(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	m.transitions++
}

func (m *Manager) dispatch(ctx context.Context, s Session, reason string) {
	m.dispatcher.Dispatch(events.NewTypedEvent(ctx, events.SessionChanged, events.SessionChangedEvent{
		Authenticated: s.Authenticated,
		Username:      s.Username(),
		Email:         userEmail(s),
		Reason:        reason,
	}))
}

func userEmail(s Session) string {
	if s.User == nil {
		return ""
	}
	return s.User.Email
}
