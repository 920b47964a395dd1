// Package view derives what the user sees from the in-memory collection:
// search and filter, a stable sort, pagination, and the breakdowns shown on
// the stats page. Nothing here performs I/O.
package view

import (
	"cmp"
	"slices"
	"strings"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
)

// SortField names the key items are ordered by.
type SortField string

const (
	SortName      SortField = "name"
	SortCondition SortField = "condition"
	SortDateAdded SortField = "dateAdded"
	SortQuantity  SortField = "quantity"
)

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortCriteria selects the ordering of the view.
type SortCriteria struct {
	Field     SortField
	Direction Direction
}

// DefaultSort shows the newest additions first.
var DefaultSort = SortCriteria{Field: SortDateAdded, Direction: Desc}

// DefaultPageSize is the number of items per page.
const DefaultPageSize = 20

// ParseSort validates user input. Empty values fall back to DefaultSort.
func ParseSort(field, direction string) (SortCriteria, error) {
	s := DefaultSort
	if field != "" {
		switch f := SortField(field); f {
		case SortName, SortCondition, SortDateAdded, SortQuantity:
			s.Field = f
		default:
			return SortCriteria{}, apperror.NewValidationf("unknown sort field %q", field)
		}
	}
	if direction != "" {
		switch d := Direction(strings.ToLower(direction)); d {
		case Asc, Desc:
			s.Direction = d
		default:
			return SortCriteria{}, apperror.NewValidationf("unknown sort direction %q", direction)
		}
	}
	return s, nil
}

// FilterCriteria holds exact-match filters. An empty field is a wildcard.
type FilterCriteria struct {
	Condition string
	Set       string
	Rarity    string
	Type      string
}

// Query is the free-text search plus the filters.
type Query struct {
	Search string
	Filter FilterCriteria
}

// Active reports whether q rejects anything.
func (q Query) Active() bool {
	return strings.TrimSpace(q.Search) != "" || q.Filter != FilterCriteria{}
}

// Matches reports whether it passes every active predicate of q. Items
// without card details fail any active predicate on a detail field.
func Matches(it collection.Item, q Query) bool {
	details, ok := it.CardDetails.Get()

	if needle := strings.ToLower(strings.TrimSpace(q.Search)); needle != "" {
		if !ok {
			return false
		}
		inName := strings.Contains(strings.ToLower(details.Name), needle)
		inSet := details.Set != nil && strings.Contains(strings.ToLower(details.Set.Name), needle)
		if !inName && !inSet {
			return false
		}
	}

	f := q.Filter
	if f.Condition != "" && string(it.Condition) != f.Condition {
		return false
	}
	if f.Set != "" && (!ok || details.Set == nil || details.Set.Name != f.Set) {
		return false
	}
	if f.Rarity != "" && (!ok || details.Rarity != f.Rarity) {
		return false
	}
	if f.Type != "" && (!ok || !slices.Contains(details.Types, f.Type)) {
		return false
	}
	return true
}

// Filter returns the items matching q in their original order.
func Filter(items []collection.Item, q Query) []collection.Item {
	out := make([]collection.Item, 0, len(items))
	for _, it := range items {
		if Matches(it, q) {
			out = append(out, it)
		}
	}
	return out
}

// Sort returns a stably sorted copy of items.
func Sort(items []collection.Item, s SortCriteria) []collection.Item {
	out := slices.Clone(items)
	if out == nil {
		out = []collection.Item{}
	}
	slices.SortStableFunc(out, func(a, b collection.Item) int {
		c := compare(a, b, s.Field)
		if s.Direction == Desc {
			return -c
		}
		return c
	})
	return out
}

func compare(a, b collection.Item, field SortField) int {
	switch field {
	case SortName:
		return strings.Compare(a.Name(), b.Name())
	case SortCondition:
		return strings.Compare(string(a.Condition), string(b.Condition))
	case SortQuantity:
		return cmp.Compare(a.Quantity, b.Quantity)
	case SortDateAdded:
		return a.AddedAt().Compare(b.AddedAt())
	}
	return 0
}

// Page is one slice of the filtered and sorted sequence.
type Page struct {
	Items      []collection.Item
	Number     int
	Size       int
	TotalItems int
	TotalPages int
}

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool { return p.Number < p.TotalPages }

// HasPrev reports whether an earlier page exists.
func (p Page) HasPrev() bool { return p.Number > 1 && p.TotalPages > 0 }

// Paginate returns the 1-based page number of items. Pages past the end are
// empty. Non-positive arguments are treated as page 1 and DefaultPageSize.
func Paginate(items []collection.Item, number, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if number < 1 {
		number = 1
	}
	p := Page{
		Items:      []collection.Item{},
		Number:     number,
		Size:       size,
		TotalItems: len(items),
	}
	if len(items) > 0 {
		p.TotalPages = (len(items)-1)/size + 1
	}
	if number > p.TotalPages {
		return p
	}
	start := (number - 1) * size
	end := min(start+size, len(items))
	p.Items = slices.Clone(items[start:end])
	return p
}
