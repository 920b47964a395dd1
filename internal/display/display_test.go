package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/catalog"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection/view"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/metrics"
)

func pikachu(id int64, qty int) collection.Item {
	return collection.Item{
		ID:        id,
		CardID:    "base1-58",
		Quantity:  qty,
		Condition: collection.NearMint,
		Variant:   collection.Holofoil,
		DateAdded: "2024-03-01T10:00:00Z",
		CardDetails: collection.Present(collection.CardDetails{
			ID:     "base1-58",
			Name:   "Pikachu",
			Rarity: "Common",
			Types:  []string{"Lightning"},
			Set:    &collection.SetRef{ID: "base1", Name: "Base Set"},
		}),
	}
}

func TestItemName(t *testing.T) {
	assert.Equal(t, "Pikachu", ItemName(pikachu(1, 1)))
	assert.Equal(t, Unnamed, ItemName(collection.Item{ID: 2, CardID: "x"}))
}

func TestPrinter_Page(t *testing.T) {
	e := view.NewEngine(view.DefaultSort, 10)
	e.Load([]collection.Item{pikachu(1, 3), {ID: 2, CardID: "gone", Quantity: 1, Condition: collection.Mint}})

	var buf bytes.Buffer
	New(&buf).Page(e.View())
	out := buf.String()

	assert.Contains(t, out, "Pikachu")
	assert.Contains(t, out, "Base Set")
	assert.Contains(t, out, "Near Mint")
	assert.Contains(t, out, "Holofoil")
	assert.Contains(t, out, Unnamed)
	assert.Contains(t, out, "Page 1 of 1 (2 of 2 cards, sorted by dateAdded desc)")
}

func TestPrinter_PageEmptyStates(t *testing.T) {
	tests := []struct {
		name  string
		items []collection.Item
		query view.Query
		page  int
		want  string
	}{
		{name: "empty collection", want: "Your collection is empty"},
		{
			name:  "nothing matches",
			items: []collection.Item{pikachu(1, 1)},
			query: view.Query{Search: "charizard"},
			want:  "No cards match",
		},
		{
			name:  "past the end",
			items: []collection.Item{pikachu(1, 1)},
			page:  3,
			want:  "Page 3 is past the end (1 pages)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := view.NewEngine(view.DefaultSort, 10)
			e.Load(tt.items)
			e.SetQuery(tt.query)
			if tt.page > 0 {
				e.SetPage(tt.page)
			}

			var buf bytes.Buffer
			New(&buf).Page(e.View())
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestPrinter_Item(t *testing.T) {
	it := pikachu(7, 2)
	it.Notes = "binder page 3"

	var buf bytes.Buffer
	New(&buf).Item(it)
	out := buf.String()

	assert.Contains(t, out, "Pikachu (item 7)")
	assert.Contains(t, out, "Rarity:    Common")
	assert.Contains(t, out, "Types:     Lightning")
	assert.Contains(t, out, "Notes:     binder page 3")
	assert.Contains(t, out, "Added:     2024-03-01 10:00:00")
}

func TestPrinter_Cards(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	p.Cards(nil)
	assert.Equal(t, "No cards found.\n", buf.String())

	buf.Reset()
	p.Cards([]catalog.CardBrief{{ID: "base1-58", LocalID: "58", Name: "Pikachu"}, {ID: "base2-60", LocalID: "60", Name: "Pikachu"}})
	assert.Contains(t, buf.String(), "base2-60")
	assert.Contains(t, buf.String(), "2 cards")
}

func TestPrinter_Card(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Card(catalog.Card{
		ID: "base1-4", LocalID: "4", Name: "Charizard", Rarity: "Rare Holo", HP: 120,
		Types: []string{"Fire"}, Stage: "Stage2", EvolveFrom: "Charmeleon",
		Set: collection.SetRef{ID: "base1", Name: "Base Set"},
	})
	out := buf.String()

	assert.Contains(t, out, "Charizard (base1-4)")
	assert.Contains(t, out, "Base Set #4")
	assert.Contains(t, out, "Stage2, evolves from Charmeleon")
}

func TestPrinter_Stats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Stats(view.ComputeStats([]collection.Item{pikachu(1, 3), pikachu(2, 1)}))
	out := buf.String()

	assert.Contains(t, out, "Total cards:     4")
	assert.Contains(t, out, "Unique cards:    2")
	assert.Contains(t, out, "Average copies:  2.00")
	assert.Contains(t, out, "Most common condition: Near Mint")

	buf.Reset()
	New(&buf).Stats(view.ComputeStats(nil))
	assert.Contains(t, buf.String(), "Most common condition: N/A")
	assert.NotContains(t, buf.String(), "Count")
}

func TestPrinter_FilterOptions(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).FilterOptions(view.FilterOptions{Sets: []string{"Base Set", "Jungle"}})
	out := buf.String()

	assert.Contains(t, out, "Sets:       Base Set, Jungle")
	assert.Contains(t, out, "Types:      -")
}

func TestPrinter_Timings(t *testing.T) {
	m := metrics.NewRequestMetrics()
	m.Observe("GET /collection", 0, false)
	m.StaleDiscards.Add(1)

	var buf bytes.Buffer
	New(&buf).Timings(m.Summary())
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "1 requests, 0 errors, 0 retries, 1 stale discarded"), out)
	assert.Contains(t, out, "GET /collection")
}
