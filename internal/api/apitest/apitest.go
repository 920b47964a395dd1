// Package apitest starts the reference backend on an httptest server for
// use in other packages' tests.
package apitest

import (
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/store"
)

// Default test account.
const (
	Email    = "ash@example.com"
	Password = "pikachu1"
)

// Backend is a running reference backend.
type Backend struct {
	Server *httptest.Server
	Store  *store.Store
}

// BaseURL returns the API root including the /api prefix.
func (b *Backend) BaseURL() string {
	return b.Server.URL + "/api"
}

// New starts a backend with the default catalog and the default test
// account. It is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()

	st := store.New(store.DefaultCatalog(), store.WithBcryptCost(bcrypt.MinCost))
	if _, err := st.Register(Email, Password); err != nil {
		t.Fatalf("apitest: register default user: %v", err)
	}

	srv := httptest.NewServer(api.NewServer(nil, st, nil).Handler())
	t.Cleanup(srv.Close)

	return &Backend{Server: srv, Store: st}
}
