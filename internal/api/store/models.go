package store

import (
	"strings"
	"time"
)

// TimestampLayout is the wire format of item timestamps (no zone).
const TimestampLayout = "2006-01-02T15:04:05"

// Timestamp marshals as a zone-less local date-time.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + time.Time(t).UTC().Format(TimestampLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// User is a registered account.
type User struct {
	Email        string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Session is a server-side session keyed by the SESSION cookie. Email is
// empty for an anonymous session that only carries a CSRF token.
type Session struct {
	ID        string
	Email     string
	CSRFToken string
	CreatedAt time.Time
}

// Authenticated reports whether a user is signed in on the session.
func (s Session) Authenticated() bool {
	return s.Email != ""
}

// CardCount is the number of cards in a set.
type CardCount struct {
	Total    int `json:"total"`
	Official int `json:"official"`
}

// SetBrief identifies the set a card belongs to.
type SetBrief struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Logo      string     `json:"logo,omitempty"`
	Symbol    string     `json:"symbol,omitempty"`
	CardCount *CardCount `json:"cardCount,omitempty"`
}

// Card is a catalog card.
type Card struct {
	ID             string   `json:"id"`
	LocalID        string   `json:"localId"`
	Name           string   `json:"name"`
	Image          string   `json:"image,omitempty"`
	Category       string   `json:"category,omitempty"`
	Illustrator    string   `json:"illustrator,omitempty"`
	Rarity         string   `json:"rarity,omitempty"`
	Set            SetBrief `json:"set"`
	HP             int      `json:"hp,omitempty"`
	Types          []string `json:"types,omitempty"`
	Stage          string   `json:"stage,omitempty"`
	EvolveFrom     string   `json:"evolveFrom,omitempty"`
	Description    string   `json:"description,omitempty"`
	RegulationMark string   `json:"regulationMark,omitempty"`
}

// Brief returns the search-result view of the card.
func (c Card) Brief() CardBrief {
	return CardBrief{ID: c.ID, LocalID: c.LocalID, Name: c.Name, Image: c.Image}
}

// CardBrief is a search result.
type CardBrief struct {
	ID      string `json:"id"`
	LocalID string `json:"localId"`
	Name    string `json:"name"`
	Image   string `json:"image,omitempty"`
}

// Item is one collection entry as returned by the collection endpoints.
type Item struct {
	ID          int64     `json:"id"`
	CardID      string    `json:"cardId"`
	Variant     string    `json:"variant,omitempty"`
	Quantity    int       `json:"quantity"`
	Condition   string    `json:"condition"`
	Notes       string    `json:"notes,omitempty"`
	AddedDate   Timestamp `json:"addedDate"`
	UpdatedDate Timestamp `json:"updatedDate"`
	CardDetails *Card     `json:"cardDetails"`
}

// ItemInput is the body of add and update requests.
type ItemInput struct {
	CardID    string `json:"cardId"`
	Variant   string `json:"variant"`
	Quantity  int    `json:"quantity"`
	Condition string `json:"condition"`
	Notes     string `json:"notes"`
}

// Stats is the body of GET /collection/stats.
type Stats struct {
	TotalCards  int `json:"totalCards"`
	UniqueCards int `json:"uniqueCards"`
}
