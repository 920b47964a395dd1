package view

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
)

func manyItems(n int) []collection.Item {
	items := make([]collection.Item, n)
	for i := range items {
		items[i] = collection.Item{
			ID:          int64(i + 1),
			Quantity:    1,
			Condition:   "Mint",
			DateAdded:   fmt.Sprintf("2024-01-%02dT00:00:00", i%28+1),
			CardDetails: card(fmt.Sprintf("Card %03d", i), "Base Set", "Common"),
		}
	}
	return items
}

func TestEngine_Defaults(t *testing.T) {
	e := NewEngine(SortCriteria{}, 0)
	st := e.View()
	if st.Sort != DefaultSort || st.Page.Size != DefaultPageSize || st.Page.Number != 1 {
		t.Errorf("unexpected defaults %+v", st)
	}
	if e.Loaded() || st.SourceCount != 0 || st.Page.Items == nil {
		t.Errorf("expected empty unloaded engine, got %+v", st)
	}
}

func TestEngine_SettingsResetPage(t *testing.T) {
	e := NewEngine(DefaultSort, 5)
	e.Load(manyItems(30))

	changes := map[string]func(){
		"search":   func() { e.SetSearch("card") },
		"filter":   func() { e.SetFilter(FilterCriteria{Condition: "Mint"}) },
		"query":    func() { e.SetQuery(Query{}) },
		"sort":     func() { e.SetSort(SortCriteria{Field: SortName, Direction: Asc}) },
		"pageSize": func() { e.SetPageSize(10) },
	}
	for name, change := range changes {
		e.SetPage(3)
		if got := e.View().Page.Number; got != 3 {
			t.Fatalf("SetPage(3) gave page %d", got)
		}
		change()
		if got := e.View().Page.Number; got != 1 {
			t.Errorf("%s: page = %d, want 1", name, got)
		}
	}
}

func TestEngine_ViewPipeline(t *testing.T) {
	e := NewEngine(SortCriteria{Field: SortName, Direction: Asc}, 4)
	e.Load(manyItems(10))
	e.SetSearch("card 00")
	e.SetPage(2)

	st := e.View()
	if st.Page.TotalItems != 10 || st.Page.TotalPages != 3 {
		t.Fatalf("unexpected page %+v", st.Page)
	}
	if got := ids(st.Page.Items); !slices.Equal(got, []int64{5, 6, 7, 8}) {
		t.Errorf("page 2 = %v, want [5 6 7 8]", got)
	}

	e.SetPage(9)
	if len(e.View().Page.Items) != 0 {
		t.Error("page past the end should be empty")
	}
}

func TestEngine_Reconcile(t *testing.T) {
	e := NewEngine(DefaultSort, 20)
	e.Load(scenarioItems())

	updated := scenarioItems()[0]
	updated.Quantity = 7
	if !e.ApplyUpdate(updated) {
		t.Fatal("ApplyUpdate reported no match")
	}
	items := e.Items()
	if got := ids(items); !slices.Equal(got, []int64{1, 2}) {
		t.Errorf("update reordered source: %v", got)
	}
	if items[0].Quantity != 7 {
		t.Errorf("quantity = %d, want 7", items[0].Quantity)
	}

	if e.ApplyUpdate(collection.Item{ID: 42}) || e.ApplyRemoval(42) {
		t.Error("absent ids should be no-ops")
	}
	if len(e.Items()) != 2 {
		t.Error("no-op changed the source")
	}

	e.ApplyAdd(collection.Item{ID: 3, Quantity: 1, Condition: "Mint"})
	e.ApplyAdd(collection.Item{ID: 3, Quantity: 2, Condition: "Mint"})
	items = e.Items()
	if got := ids(items); !slices.Equal(got, []int64{1, 2, 3}) {
		t.Errorf("after add = %v", got)
	}
	if items[2].Quantity != 2 {
		t.Error("duplicate add should replace")
	}
}

func TestEngine_UpdateThenRemoveEqualsRemove(t *testing.T) {
	a := NewEngine(DefaultSort, 20)
	b := NewEngine(DefaultSort, 20)
	a.Load(scenarioItems())
	b.Load(scenarioItems())

	upd := scenarioItems()[1]
	upd.Notes = "sleeved"
	a.ApplyUpdate(upd)
	a.ApplyRemoval(2)
	b.ApplyRemoval(2)

	// A late update for the removed id does not resurrect it.
	a.ApplyUpdate(upd)

	if !slices.EqualFunc(a.Items(), b.Items(), func(x, y collection.Item) bool { return x.ID == y.ID && x.Notes == y.Notes }) {
		t.Errorf("update+remove = %v, remove = %v", ids(a.Items()), ids(b.Items()))
	}
}

func TestEngine_StaleLoadDiscarded(t *testing.T) {
	e := NewEngine(DefaultSort, 20)

	first := e.BeginLoad()
	second := e.BeginLoad()

	if !e.CompleteLoad(second, scenarioItems()[:1]) {
		t.Fatal("latest ticket rejected")
	}
	if e.CompleteLoad(first, scenarioItems()) {
		t.Error("superseded ticket applied")
	}
	if got := ids(e.Items()); !slices.Equal(got, []int64{1}) {
		t.Errorf("source = %v, want [1]", got)
	}
}

func TestEngine_MutationSupersedesLoad(t *testing.T) {
	tests := map[string]func(*Engine){
		"update":  func(e *Engine) { e.ApplyUpdate(collection.Item{ID: 1, Quantity: 5}) },
		"removal": func(e *Engine) { e.ApplyRemoval(1) },
		"add":     func(e *Engine) { e.ApplyAdd(collection.Item{ID: 9, Quantity: 1}) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			e := NewEngine(DefaultSort, 20)
			e.Load(scenarioItems())
			before := ids(e.Items())
			pending := e.BeginLoad()

			mutate(e)
			after := ids(e.Items())

			if e.CompleteLoad(pending, scenarioItems()) {
				t.Fatal("load requested before the mutation was applied")
			}
			if got := ids(e.Items()); !slices.Equal(got, after) {
				t.Errorf("source = %v, want %v (was %v)", got, after, before)
			}
			if next := e.BeginLoad(); !e.CompleteLoad(next, scenarioItems()) {
				t.Error("load started after the mutation rejected")
			}
		})
	}
}

func TestEngine_LoadDeduplicatesIDs(t *testing.T) {
	e := NewEngine(DefaultSort, 20)
	e.Load([]collection.Item{
		{ID: 1, Quantity: 1},
		{ID: 2, Quantity: 1},
		{ID: 1, Quantity: 7},
	})

	items := e.Items()
	if got := ids(items); !slices.Equal(got, []int64{1, 2}) {
		t.Fatalf("source = %v, want [1 2]", got)
	}
	if items[0].Quantity != 7 {
		t.Errorf("duplicate id kept quantity %d, want the last occurrence 7", items[0].Quantity)
	}
}

func TestEngine_LoadCopiesInput(t *testing.T) {
	e := NewEngine(DefaultSort, 20)
	items := scenarioItems()
	e.Load(items)
	items[0].Quantity = 99

	if e.Items()[0].Quantity == 99 {
		t.Error("engine shares the caller's slice")
	}
}

func TestEngine_ConcurrentUse(t *testing.T) {
	e := NewEngine(DefaultSort, 5)
	e.Load(manyItems(50))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 50 {
				switch (i + j) % 4 {
				case 0:
					e.ApplyRemoval(int64(j + 1))
				case 1:
					e.SetSearch("card")
				case 2:
					e.SetPage(j%5 + 1)
				default:
					_ = e.View()
				}
			}
		}(i)
	}
	wg.Wait()

	for _, it := range e.Items() {
		if it.ID < 1 || it.ID > 50 {
			t.Fatalf("unexpected id %d", it.ID)
		}
	}
}

func TestEngine_Reset(t *testing.T) {
	e := NewEngine(DefaultSort, 2)
	e.Load(scenarioItems())
	e.SetSearch("pika")
	e.SetPage(2)
	pending := e.BeginLoad()

	e.Reset()

	if e.Loaded() || len(e.Items()) != 0 {
		t.Fatalf("after reset: loaded=%v items=%d", e.Loaded(), len(e.Items()))
	}
	st := e.View()
	if st.Page.Number != 1 || st.Query.Search != "pika" {
		t.Errorf("view settings = page %d search %q, want page 1 search kept", st.Page.Number, st.Query.Search)
	}
	if e.CompleteLoad(pending, scenarioItems()) {
		t.Error("load started before reset was applied")
	}
}
