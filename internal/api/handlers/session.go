package handlers

import (
	"net/http"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/store"
)

const (
	// SessionCookieName is the cookie carrying the session id.
	SessionCookieName = "SESSION"
	// CSRFHeaderName is the header mutating requests must echo the token in.
	CSRFHeaderName = "X-XSRF-TOKEN"
	// CSRFParameterName is the form parameter alternative to the header.
	CSRFParameterName = "_csrf"
)

// SetSessionCookie issues the session cookie for sess.
func SetSessionCookie(w http.ResponseWriter, sess store.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// currentSession returns the session resolved by the session middleware.
func currentSession(r *http.Request) (store.Session, bool) {
	return store.SessionFrom(r.Context())
}
