package view

import (
	"slices"
	"sync"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
)

// Ticket identifies one load. Only the most recent ticket may complete.
type Ticket uint64

// State is a snapshot of the view: the current page plus the inputs that
// produced it.
type State struct {
	Page        Page
	Query       Query
	Sort        SortCriteria
	SourceCount int
}

// Engine holds the source collection and the view settings. The source is
// changed only by loads and reconciliations. Safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	source   []collection.Item
	query    Query
	sort     SortCriteria
	page     int
	pageSize int
	ticket   Ticket
	loaded   bool
}

// NewEngine creates an empty engine. A zero sort or non-positive page size
// selects the defaults.
func NewEngine(sort SortCriteria, pageSize int) *Engine {
	if sort.Field == "" {
		sort.Field = DefaultSort.Field
	}
	if sort.Direction == "" {
		sort.Direction = DefaultSort.Direction
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Engine{
		source:   []collection.Item{},
		sort:     sort,
		page:     1,
		pageSize: pageSize,
	}
}

// View recomputes the current page.
func (e *Engine) View() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	visible := Sort(Filter(e.source, e.query), e.sort)
	return State{
		Page:        Paginate(visible, e.page, e.pageSize),
		Query:       e.query,
		Sort:        e.sort,
		SourceCount: len(e.source),
	}
}

// Items returns a copy of the source collection in source order.
func (e *Engine) Items() []collection.Item {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.source)
}

// Loaded reports whether any load has completed.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// SetSearch changes the free-text search and returns to page 1.
func (e *Engine) SetSearch(search string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query.Search = search
	e.page = 1
}

// SetFilter replaces the filters and returns to page 1.
func (e *Engine) SetFilter(f FilterCriteria) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query.Filter = f
	e.page = 1
}

// SetQuery replaces search and filters together and returns to page 1.
func (e *Engine) SetQuery(q Query) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = q
	e.page = 1
}

// SetSort changes the ordering and returns to page 1.
func (e *Engine) SetSort(s SortCriteria) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sort = s
	e.page = 1
}

// SetPageSize changes the page size and returns to page 1.
func (e *Engine) SetPageSize(size int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pageSize = size
	e.page = 1
}

// SetPage moves to a 1-based page. Pages past the end are allowed and show
// nothing.
func (e *Engine) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.page = n
}

// Load replaces the source unconditionally.
func (e *Engine) Load(items []collection.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replace(items)
}

// BeginLoad starts a load and supersedes every earlier ticket.
func (e *Engine) BeginLoad() Ticket {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticket++
	return e.ticket
}

// CompleteLoad installs items if t is still the latest ticket and reports
// whether it did. A mutation applied after BeginLoad also invalidates t, so
// an older list cannot undo it.
func (e *Engine) CompleteLoad(t Ticket, items []collection.Item) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t != e.ticket {
		return false
	}
	e.replace(items)
	return true
}

// Reset empties the source, supersedes every load in flight and marks the
// engine as not loaded. View settings are kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticket++
	e.source = []collection.Item{}
	e.loaded = false
	e.page = 1
}

// replace installs items as the source. Ids are unique; when a list repeats
// one, the last occurrence wins at the position of the first.
func (e *Engine) replace(items []collection.Item) {
	e.source = make([]collection.Item, 0, len(items))
	seen := make(map[int64]int, len(items))
	for _, it := range items {
		if i, ok := seen[it.ID]; ok {
			e.source[i] = it
			continue
		}
		seen[it.ID] = len(e.source)
		e.source = append(e.source, it)
	}
	e.loaded = true
}

// ApplyUpdate replaces the item with the same id in place. It reports
// whether an item was replaced; an absent id is a no-op.
func (e *Engine) ApplyUpdate(it collection.Item) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticket++
	i := e.indexOf(it.ID)
	if i < 0 {
		return false
	}
	e.source[i] = it
	return true
}

// ApplyRemoval removes the item with id. An absent id is a no-op.
func (e *Engine) ApplyRemoval(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticket++
	i := e.indexOf(id)
	if i < 0 {
		return false
	}
	e.source = slices.Delete(e.source, i, i+1)
	return true
}

// ApplyAdd appends a newly created item. An item whose id is already present
// replaces it instead, so the source never holds duplicate ids.
func (e *Engine) ApplyAdd(it collection.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticket++
	if i := e.indexOf(it.ID); i >= 0 {
		e.source[i] = it
		return
	}
	e.source = append(e.source, it)
}

// indexOf must be called with e.mu held.
func (e *Engine) indexOf(id int64) int {
	return slices.IndexFunc(e.source, func(it collection.Item) bool { return it.ID == id })
}
