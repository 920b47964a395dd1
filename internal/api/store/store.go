// Package store is the in-memory state behind the reference backend:
// accounts, cookie sessions, per-user collections and a small card catalog.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MaxNotesLength is the longest notes value the backend accepts.
const MaxNotesLength = 500

var (
	// ErrNotFound is returned for unknown items, cards and sessions.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("email already exists")
	// ErrInvalidCredentials is returned by Authenticate on any mismatch.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError is a rejected request body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Store is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*User
	sessions    map[string]*Session
	collections map[string]map[int64]*Item
	nextID      int64
	catalog     map[string]Card
	catalogIDs  []string

	bcryptCost int
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) { s.bcryptCost = cost }
}

// New creates a store serving the given catalog.
func New(catalog []Card, opts ...Option) *Store {
	s := &Store{
		users:       make(map[string]*User),
		sessions:    make(map[string]*Session),
		collections: make(map[string]map[int64]*Item),
		catalog:     make(map[string]Card, len(catalog)),
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
	for _, c := range catalog {
		s.catalog[c.ID] = c
		s.catalogIDs = append(s.catalogIDs, c.ID)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- Accounts ---

// Register creates an account. The username is the email.
func (s *Store) Register(email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, &ValidationError{Message: "A valid email is required"}
	}
	if len(password) < 6 {
		return User{}, &ValidationError{Message: "Password must be at least 6 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return User{}, ErrEmailTaken
	}
	u := &User{Email: email, Username: email, PasswordHash: hash, CreatedAt: s.now()}
	s.users[email] = u
	return *u, nil
}

// Authenticate checks a password.
func (s *Store) Authenticate(email, password string) (User, error) {
	s.mu.RLock()
	u, ok := s.users[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return *u, nil
}

// User looks up an account by email.
func (s *Store) User(email string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[normalizeEmail(email)]
	if !ok {
		return User{}, false
	}
	return *u, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- Sessions ---

// NewSession creates an anonymous session with a fresh CSRF token.
func (s *Store) NewSession() Session {
	sess := &Session{ID: uuid.NewString(), CSRFToken: uuid.NewString(), CreatedAt: s.now()}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return *sess
}

// Session looks up a session by id.
func (s *Store) Session(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// SignIn replaces the session oldID (which may be empty or unknown) with a
// new authenticated session. Both the id and the CSRF token rotate.
func (s *Store) SignIn(oldID, email string) Session {
	sess := &Session{
		ID:        uuid.NewString(),
		Email:     normalizeEmail(email),
		CSRFToken: uuid.NewString(),
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	delete(s.sessions, oldID)
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return *sess
}

// DeleteSession removes a session. Unknown ids are ignored.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// ExpireSessions drops every session for email, as if they timed out.
func (s *Store) ExpireSessions(email string) int {
	email = normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.Email == email {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// PruneSessions drops sessions created more than ttl ago and returns how
// many were removed. Signed-in users must log in again.
func (s *Store) PruneSessions(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// SessionCount returns the number of live sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// --- Collection ---

// Items returns the user's collection ordered by id.
func (s *Store) Items(email string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[normalizeEmail(email)]
	items := make([]Item, 0, len(coll))
	for _, it := range coll {
		items = append(items, *it)
	}
	slices.SortFunc(items, func(a, b Item) int { return cmp.Compare(a.ID, b.ID) })
	return items
}

// AddItem validates in and appends a new item.
func (s *Store) AddItem(email string, in ItemInput) (Item, error) {
	if strings.TrimSpace(in.CardID) == "" {
		return Item{}, &ValidationError{Message: "Card ID is required"}
	}
	if err := validateMutable(in); err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	coll, ok := s.collections[email]
	if !ok {
		coll = make(map[int64]*Item)
		s.collections[email] = coll
	}
	s.nextID++
	now := Timestamp(s.now())
	it := &Item{
		ID:          s.nextID,
		CardID:      in.CardID,
		Variant:     in.Variant,
		Quantity:    in.Quantity,
		Condition:   in.Condition,
		Notes:       in.Notes,
		AddedDate:   now,
		UpdatedDate: now,
		CardDetails: s.details(in.CardID),
	}
	coll[it.ID] = it
	return *it, nil
}

// UpdateItem replaces the mutable fields of an item. An empty variant keeps
// the current one.
func (s *Store) UpdateItem(email string, id int64, in ItemInput) (Item, error) {
	if err := validateMutable(in); err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.collections[normalizeEmail(email)][id]
	if !ok {
		return Item{}, ErrNotFound
	}
	it.Quantity = in.Quantity
	it.Condition = in.Condition
	it.Notes = in.Notes
	if in.Variant != "" {
		it.Variant = in.Variant
	}
	it.UpdatedDate = Timestamp(s.now())
	return *it, nil
}

// RemoveItem deletes an item.
func (s *Store) RemoveItem(email string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[normalizeEmail(email)]
	if _, ok := coll[id]; !ok {
		return ErrNotFound
	}
	delete(coll, id)
	return nil
}

// Stats summarises the user's collection.
func (s *Store) Stats(email string) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	unique := make(map[string]struct{})
	for _, it := range s.collections[normalizeEmail(email)] {
		st.TotalCards += it.Quantity
		unique[it.CardID] = struct{}{}
	}
	st.UniqueCards = len(unique)
	return st
}

func validateMutable(in ItemInput) error {
	switch {
	case in.Quantity < 1:
		return &ValidationError{Message: "Quantity must be at least 1"}
	case strings.TrimSpace(in.Condition) == "":
		return &ValidationError{Message: "Condition is required"}
	case len([]rune(in.Notes)) > MaxNotesLength:
		return &ValidationError{Message: fmt.Sprintf("Notes cannot exceed %d characters", MaxNotesLength)}
	}
	return nil
}

// details must be called with s.mu held.
func (s *Store) details(cardID string) *Card {
	c, ok := s.catalog[cardID]
	if !ok {
		return nil
	}
	return &c
}

// --- Catalog ---

// SearchCards returns cards whose name contains name, case-insensitively,
// in catalog order.
func (s *Store) SearchCards(name string) []CardBrief {
	needle := strings.ToLower(strings.TrimSpace(name))
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]CardBrief, 0)
	for _, id := range s.catalogIDs {
		c := s.catalog[id]
		if needle == "" || strings.Contains(strings.ToLower(c.Name), needle) {
			results = append(results, c.Brief())
		}
	}
	return results
}

// Card looks up a catalog card.
func (s *Store) Card(id string) (Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.catalog[id]
	if !ok {
		return Card{}, ErrNotFound
	}
	return c, nil
}

// --- Request context ---

type sessionKey struct{}

// WithSession attaches the request's session to ctx.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFrom returns the session attached by WithSession.
func SessionFrom(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(Session)
	return sess, ok
}
