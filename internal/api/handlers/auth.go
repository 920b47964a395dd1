package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/response"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/store"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *store.Store, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{store: s, logger: logger}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Message  string `json:"message"`
}

type userResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type csrfResponse struct {
	Token         string `json:"token"`
	HeaderName    string `json:"headerName"`
	ParameterName string `json:"parameterName"`
}

// CSRFToken returns the session's token, creating an anonymous session
// when the request has none.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(r)
	if !ok {
		sess = h.store.NewSession()
		SetSessionCookie(w, sess)
	}
	response.OK(w, csrfResponse{
		Token:         sess.CSRFToken,
		HeaderName:    CSRFHeaderName,
		ParameterName: CSRFParameterName,
	})
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(r)
	if !ok || !sess.Authenticated() {
		response.Fail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	u, ok := h.store.User(sess.Email)
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	response.OK(w, userResponse{Username: u.Username, Email: u.Email})
}

// Login authenticates and rotates the session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.store.Authenticate(req.Email, req.Password)
	if err != nil {
		h.logger.Warn("Failed login attempt", "email", req.Email)
		response.Fail(w, http.StatusBadRequest, "Invalid email or password")
		return
	}

	old, _ := currentSession(r)
	sess := h.store.SignIn(old.ID, u.Email)
	SetSessionCookie(w, sess)
	h.logger.Info("User logged in", "user", u.Username)

	response.OK(w, authResponse{
		Type:     "Session",
		Username: u.Username,
		Email:    u.Email,
		Message:  "Login successful",
	})
}

// Register creates an account without signing in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.store.Register(req.Email, req.Password)
	var vErr *store.ValidationError
	switch {
	case errors.As(err, &vErr):
		response.BadRequest(w, vErr)
		return
	case errors.Is(err, store.ErrEmailTaken):
		response.Fail(w, http.StatusBadRequest, "Email already exists")
		return
	case err != nil:
		response.Fail(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.logger.Info("User registered", "user", u.Username)
	response.OK(w, authResponse{
		Type:     "Session",
		Username: u.Username,
		Email:    u.Email,
		Message:  "Registration successful",
	})
}

// Logout ends the session. It succeeds even when there is none.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := currentSession(r); ok {
		h.store.DeleteSession(sess.ID)
	}
	ClearSessionCookie(w)
	response.Message(w, "Logout successful")
}
