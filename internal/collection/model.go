// Package collection maps the remote collection API onto typed items and
// requests, validating mutations before they are sent.
package collection

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
)

// MaxNotesLength is the longest notes value the backend accepts.
const MaxNotesLength = 500

// Condition is the physical grade of a card. The backend does not restrict
// the value set; the constants are the ones the UI offers.
type Condition string

const (
	Mint             Condition = "mint"
	NearMint         Condition = "near_mint"
	LightlyPlayed    Condition = "lightly_played"
	ModeratelyPlayed Condition = "moderately_played"
	HeavilyPlayed    Condition = "heavily_played"
	Damaged          Condition = "damaged"
)

// Conditions lists the standard conditions, best first.
var Conditions = []Condition{Mint, NearMint, LightlyPlayed, ModeratelyPlayed, HeavilyPlayed, Damaged}

// Label returns a display name, e.g. "Near Mint".
func (c Condition) Label() string {
	return label(string(c))
}

// Variant is the printing of a card.
type Variant string

const (
	Normal          Variant = "normal"
	Holofoil        Variant = "holofoil"
	ReverseHolofoil Variant = "reverse_holofoil"
	FirstEdition    Variant = "first_edition"
)

// Variants lists the standard variants.
var Variants = []Variant{Normal, Holofoil, ReverseHolofoil, FirstEdition}

// Label returns a display name, e.g. "Reverse Holofoil".
func (v Variant) Label() string {
	return label(string(v))
}

func label(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// SetRef identifies the set a card was printed in.
type SetRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Logo   string `json:"logo,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// CardDetails is the catalog snapshot embedded in an item.
type CardDetails struct {
	ID       string   `json:"id"`
	LocalID  string   `json:"localId,omitempty"`
	Name     string   `json:"name"`
	Image    string   `json:"image,omitempty"`
	Category string   `json:"category,omitempty"`
	Rarity   string   `json:"rarity,omitempty"`
	HP       int      `json:"hp,omitempty"`
	Types    []string `json:"types,omitempty"`
	Set      *SetRef  `json:"set,omitempty"`
}

// SetName returns the set name, or "" when the set is unknown.
func (d CardDetails) SetName() string {
	if d.Set == nil {
		return ""
	}
	return d.Set.Name
}

// OptionalDetails is either a present CardDetails or absent. Code reading
// an item's details must handle the absent case through Get.
type OptionalDetails struct {
	details CardDetails
	present bool
}

// Present wraps d.
func Present(d CardDetails) OptionalDetails {
	return OptionalDetails{details: d, present: true}
}

// Absent returns the empty value.
func Absent() OptionalDetails {
	return OptionalDetails{}
}

// Get returns the details and whether they are present.
func (o OptionalDetails) Get() (CardDetails, bool) {
	return o.details, o.present
}

// IsPresent reports whether details are present.
func (o OptionalDetails) IsPresent() bool {
	return o.present
}

// MarshalJSON encodes absent details as null.
func (o OptionalDetails) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.details)
}

// UnmarshalJSON decodes null as absent.
func (o *OptionalDetails) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = Absent()
		return nil
	}
	var d CardDetails
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	*o = Present(d)
	return nil
}

// Item is one entry of the user's collection. ID, CardID and DateAdded are
// assigned by the server and never change.
type Item struct {
	ID          int64           `json:"id"`
	CardID      string          `json:"cardId"`
	Quantity    int             `json:"quantity"`
	Condition   Condition       `json:"condition"`
	Variant     Variant         `json:"variant,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	DateAdded   string          `json:"dateAdded,omitempty"`
	DateUpdated string          `json:"dateUpdated,omitempty"`
	CardDetails OptionalDetails `json:"cardDetails"`
}

// itemWire accepts both field spellings the backend has used.
type itemWire struct {
	ID          int64           `json:"id"`
	CardID      string          `json:"cardId"`
	TCGID       string          `json:"tcgId"`
	Quantity    int             `json:"quantity"`
	Condition   Condition       `json:"condition"`
	Variant     Variant         `json:"variant"`
	Notes       string          `json:"notes"`
	DateAdded   string          `json:"dateAdded"`
	AddedDate   string          `json:"addedDate"`
	DateUpdated string          `json:"dateUpdated"`
	UpdatedDate string          `json:"updatedDate"`
	CardDetails OptionalDetails `json:"cardDetails"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (it *Item) UnmarshalJSON(b []byte) error {
	var w itemWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*it = Item{
		ID:          w.ID,
		CardID:      firstNonEmpty(w.CardID, w.TCGID),
		Quantity:    w.Quantity,
		Condition:   w.Condition,
		Variant:     w.Variant,
		Notes:       w.Notes,
		DateAdded:   firstNonEmpty(w.DateAdded, w.AddedDate),
		DateUpdated: firstNonEmpty(w.DateUpdated, w.UpdatedDate),
		CardDetails: w.CardDetails,
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Name returns the card name, or "" when details are absent.
func (it Item) Name() string {
	if d, ok := it.CardDetails.Get(); ok {
		return d.Name
	}
	return ""
}

// AddedAt returns DateAdded parsed, or the Unix epoch when it is missing or
// unparsable.
func (it Item) AddedAt() time.Time {
	return ParseTimestamp(it.DateAdded)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp parses the date formats the backend emits. Zone-less values
// are read as UTC. Failures yield the Unix epoch.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Unix(0, 0).UTC()
}

// AddRequest is the body of an add call.
type AddRequest struct {
	CardID    string    `json:"cardId"`
	Variant   Variant   `json:"variant"`
	Quantity  int       `json:"quantity"`
	Condition Condition `json:"condition"`
	Notes     string    `json:"notes,omitempty"`
}

// Validate checks the request before it is sent.
func (r AddRequest) Validate() error {
	if strings.TrimSpace(r.CardID) == "" {
		return apperror.NewValidation("card id is required")
	}
	if strings.TrimSpace(string(r.Variant)) == "" {
		return apperror.NewValidation("variant is required")
	}
	return validateMutable(r.Quantity, r.Condition, r.Notes)
}

// UpdateRequest replaces the mutable fields of an item. ID, CardID and
// DateAdded are not part of it.
type UpdateRequest struct {
	Quantity  int       `json:"quantity"`
	Condition Condition `json:"condition"`
	Variant   Variant   `json:"variant,omitempty"`
	Notes     string    `json:"notes"`
}

// Validate checks the request before it is sent.
func (r UpdateRequest) Validate() error {
	return validateMutable(r.Quantity, r.Condition, r.Notes)
}

// UpdateFrom returns a request that keeps every mutable field of it.
func UpdateFrom(it Item) UpdateRequest {
	return UpdateRequest{
		Quantity:  it.Quantity,
		Condition: it.Condition,
		Variant:   it.Variant,
		Notes:     it.Notes,
	}
}

func validateMutable(quantity int, condition Condition, notes string) error {
	switch {
	case quantity < 1:
		return apperror.NewValidationf("quantity must be at least 1, got %d", quantity)
	case strings.TrimSpace(string(condition)) == "":
		return apperror.NewValidation("condition is required")
	case utf8.RuneCountInString(notes) > MaxNotesLength:
		return apperror.NewValidationf("notes cannot exceed %d characters", MaxNotesLength)
	}
	return nil
}

// ServerStats is the backend's own summary of the collection.
type ServerStats struct {
	TotalCards  int `json:"totalCards"`
	UniqueCards int `json:"uniqueCards"`
}
