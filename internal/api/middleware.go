package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/handlers"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/response"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/store"
)

// sessionMiddleware resolves the SESSION cookie and attaches the session to
// the request context. Unknown cookies are ignored.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(handlers.SessionCookieName); err == nil && c.Value != "" {
			if sess, ok := s.store.Session(c.Value); ok {
				r = r.WithContext(store.WithSession(r.Context(), sess))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects requests without a signed-in session.
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := store.SessionFrom(r.Context())
		if !ok || !sess.Authenticated() {
			response.Fail(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireCSRF rejects mutating requests whose token header does not match
// the session's token.
func requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		sess, ok := store.SessionFrom(r.Context())
		token := r.Header.Get(handlers.CSRFHeaderName)
		if !ok || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(sess.CSRFToken)) != 1 {
			response.Fail(w, http.StatusForbidden, "Invalid CSRF token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
