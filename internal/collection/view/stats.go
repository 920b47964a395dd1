package view

import (
	"maps"
	"slices"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
)

// Unknown labels items whose card details lack the counted field.
const Unknown = "Unknown"

// NotAvailable is reported as most common value of an empty collection.
const NotAvailable = "N/A"

// Count is one bucket of a breakdown.
type Count struct {
	Key   string
	Count int
}

// Breakdown keeps buckets in first-seen order.
type Breakdown []Count

// Get returns the count for key.
func (b Breakdown) Get(key string) int {
	for _, c := range b {
		if c.Key == key {
			return c.Count
		}
	}
	return 0
}

// Top returns the key with the highest count. The first-seen key wins ties.
func (b Breakdown) Top() string {
	best := -1
	key := NotAvailable
	for _, c := range b {
		if c.Count > best {
			best, key = c.Count, c.Key
		}
	}
	return key
}

func (b Breakdown) add(key string, n int) Breakdown {
	for i := range b {
		if b[i].Key == key {
			b[i].Count += n
			return b
		}
	}
	return append(b, Count{Key: key, Count: n})
}

// Stats summarises a collection.
type Stats struct {
	// TotalCards is the sum of quantities.
	TotalCards int
	// UniqueCards is the number of items.
	UniqueCards int
	TotalSets   int
	// AverageCopies is TotalCards / UniqueCards, 0 when empty.
	AverageCopies float64

	// Conditions and Rarities weight each item by its quantity. Sets
	// count items.
	Conditions Breakdown
	Rarities   Breakdown
	Sets       Breakdown

	MostCommonCondition string
	MostCommonRarity    string
}

// ComputeStats builds the breakdowns for items.
func ComputeStats(items []collection.Item) Stats {
	var s Stats
	for _, it := range items {
		s.TotalCards += it.Quantity
		s.Conditions = s.Conditions.add(string(it.Condition), it.Quantity)

		rarity, set := Unknown, Unknown
		if d, ok := it.CardDetails.Get(); ok {
			if d.Rarity != "" {
				rarity = d.Rarity
			}
			if name := d.SetName(); name != "" {
				set = name
			}
		}
		s.Rarities = s.Rarities.add(rarity, it.Quantity)
		s.Sets = s.Sets.add(set, 1)
	}
	s.UniqueCards = len(items)
	s.TotalSets = len(s.Sets)
	if s.UniqueCards > 0 {
		s.AverageCopies = float64(s.TotalCards) / float64(s.UniqueCards)
	}
	s.MostCommonCondition = s.Conditions.Top()
	s.MostCommonRarity = s.Rarities.Top()
	return s
}

// FilterOptions are the distinct values offered by the filter controls.
type FilterOptions struct {
	Conditions []string
	Sets       []string
	Rarities   []string
	Types      []string
}

// BuildFilterOptions collects the sorted distinct filter values present in
// items. Empty values are skipped.
func BuildFilterOptions(items []collection.Item) FilterOptions {
	conds := map[string]struct{}{}
	sets := map[string]struct{}{}
	rarities := map[string]struct{}{}
	types := map[string]struct{}{}

	for _, it := range items {
		addNonEmpty(conds, string(it.Condition))
		d, ok := it.CardDetails.Get()
		if !ok {
			continue
		}
		addNonEmpty(sets, d.SetName())
		addNonEmpty(rarities, d.Rarity)
		for _, t := range d.Types {
			addNonEmpty(types, t)
		}
	}
	return FilterOptions{
		Conditions: sortedKeys(conds),
		Sets:       sortedKeys(sets),
		Rarities:   sortedKeys(rarities),
		Types:      sortedKeys(types),
	}
}

func addNonEmpty(m map[string]struct{}, v string) {
	if v != "" {
		m[v] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := slices.Sorted(maps.Keys(m))
	if keys == nil {
		keys = []string{}
	}
	return keys
}
