package session

// DefaultCSRFHeaderName is used when the token endpoint omits headerName.
const DefaultCSRFHeaderName = "X-XSRF-TOKEN"

// User is the identity returned by the session endpoints.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Session is a point-in-time snapshot of the authentication state.
type Session struct {
	Authenticated  bool   `json:"authenticated"`
	User           *User  `json:"user,omitempty"`
	CSRFToken      string `json:"-"`
	CSRFHeaderName string `json:"csrfHeaderName"`
}

// Username returns the signed-in username, or "" when signed out.
func (s Session) Username() string {
	if s.User == nil {
		return ""
	}
	return s.User.Username
}

// CSRFToken is an anti-forgery token and the header it must be sent in.
type CSRFToken struct {
	HeaderName    string `json:"headerName"`
	ParameterName string `json:"parameterName,omitempty"`
	Token         string `json:"token"`
}

// Credentials are sent to the login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is sent to the register endpoint.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the body returned by login and register.
type authResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Message  string `json:"message"`
}

func unauthenticated() Session {
	return Session{CSRFHeaderName: DefaultCSRFHeaderName}
}
