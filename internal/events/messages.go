package events

// Event types.
const (
	SessionChanged    = "session:changed"
	CollectionChanged = "collection:changed"
)

// Session transition reasons.
const (
	ReasonProbe   = "probe"
	ReasonLogin   = "login"
	ReasonLogout  = "logout"
	ReasonExpired = "expired" // a 401 forced sign-out
)

// SessionChangedEvent is the payload for session:changed events.
type SessionChangedEvent struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
	Reason        string `json:"reason"`
}

// Collection operations.
const (
	OpLoaded  = "loaded"
	OpAdded   = "added"
	OpUpdated = "updated"
	OpRemoved = "removed"
	OpCleared = "cleared" // the signed-in user changed
)

// CollectionChangedEvent is the payload for collection:changed events.
type CollectionChangedEvent struct {
	Op     string `json:"op"`
	ItemID int64  `json:"itemId,omitempty"`
	Count  int    `json:"count"` // source size after the change
}
