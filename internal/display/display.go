// Package display renders collection pages, catalog results and statistics
// for the terminal.
package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/catalog"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection/view"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/metrics"
)

// Unnamed is shown for items whose card details are absent.
const Unnamed = "(unknown card)"

// Printer writes human-readable output to one writer. Colors are used only
// when the writer is a terminal.
type Printer struct {
	w      io.Writer
	title  lipgloss.Style
	muted  lipgloss.Style
	header lipgloss.Style
	border lipgloss.Style
	cell   lipgloss.Style
}

// New creates a printer for w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:      w,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:  r.NewStyle().Faint(true),
		header: r.NewStyle().Bold(true).Padding(0, 1),
		border: r.NewStyle().Foreground(lipgloss.Color("8")),
		cell:   r.NewStyle().Padding(0, 1),
	}
}

// ItemName returns the card name of it, or Unnamed.
func ItemName(it collection.Item) string {
	if name := it.Name(); name != "" {
		return name
	}
	return Unnamed
}

func itemSet(it collection.Item) string {
	if d, ok := it.CardDetails.Get(); ok {
		return d.SetName()
	}
	return ""
}

func (p *Printer) heading(text string) {
	fmt.Fprintln(p.w, p.title.Render(text))
}

func (p *Printer) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			return p.cell
		})
	fmt.Fprintln(p.w, t.String())
}

// Page prints one page of the collection view.
func (p *Printer) Page(st view.State) {
	page := st.Page
	if st.SourceCount == 0 {
		fmt.Fprintln(p.w, "Your collection is empty. Add a card with 'tcg-tracker add -card <id>'.")
		return
	}
	if len(page.Items) == 0 {
		if page.TotalItems == 0 {
			fmt.Fprintln(p.w, "No cards match the current search and filters.")
		} else {
			fmt.Fprintf(p.w, "Page %d is past the end (%d pages).\n", page.Number, page.TotalPages)
		}
		return
	}

	rows := make([][]string, 0, len(page.Items))
	for _, it := range page.Items {
		rows = append(rows, []string{
			strconv.FormatInt(it.ID, 10),
			ItemName(it),
			itemSet(it),
			strconv.Itoa(it.Quantity),
			it.Condition.Label(),
			it.Variant.Label(),
			collection.ParseTimestamp(it.DateAdded).Format("2006-01-02"),
		})
	}
	p.table([]string{"ID", "Card", "Set", "Qty", "Condition", "Variant", "Added"}, rows)

	footer := fmt.Sprintf("Page %d of %d (%d of %d cards, sorted by %s %s)",
		page.Number, page.TotalPages, page.TotalItems, st.SourceCount, st.Sort.Field, st.Sort.Direction)
	fmt.Fprintln(p.w, p.muted.Render(footer))
}

// Item prints every field of one item.
func (p *Printer) Item(it collection.Item) {
	p.heading(fmt.Sprintf("%s (item %d)", ItemName(it), it.ID))
	fmt.Fprintf(p.w, "├─ Card:      %s\n", it.CardID)
	if d, ok := it.CardDetails.Get(); ok {
		if set := d.SetName(); set != "" {
			fmt.Fprintf(p.w, "├─ Set:       %s\n", set)
		}
		if d.Rarity != "" {
			fmt.Fprintf(p.w, "├─ Rarity:    %s\n", d.Rarity)
		}
		if len(d.Types) > 0 {
			fmt.Fprintf(p.w, "├─ Types:     %s\n", strings.Join(d.Types, ", "))
		}
	}
	fmt.Fprintf(p.w, "├─ Quantity:  %d\n", it.Quantity)
	fmt.Fprintf(p.w, "├─ Condition: %s\n", it.Condition.Label())
	fmt.Fprintf(p.w, "├─ Variant:   %s\n", it.Variant.Label())
	if it.Notes != "" {
		fmt.Fprintf(p.w, "├─ Notes:     %s\n", it.Notes)
	}
	fmt.Fprintf(p.w, "└─ Added:     %s\n", collection.ParseTimestamp(it.DateAdded).Format("2006-01-02 15:04:05"))
}

// Cards prints catalog search results.
func (p *Printer) Cards(cards []catalog.CardBrief) {
	if len(cards) == 0 {
		fmt.Fprintln(p.w, "No cards found.")
		return
	}
	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, []string{c.ID, c.Name, c.LocalID})
	}
	p.table([]string{"ID", "Name", "Number"}, rows)
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf("%d cards", len(cards))))
}

// Card prints one catalog entry.
func (p *Printer) Card(c catalog.Card) {
	p.heading(fmt.Sprintf("%s (%s)", c.Name, c.ID))
	fmt.Fprintf(p.w, "├─ Set:    %s #%s\n", c.Set.Name, c.LocalID)
	if c.Rarity != "" {
		fmt.Fprintf(p.w, "├─ Rarity: %s\n", c.Rarity)
	}
	if c.HP > 0 {
		fmt.Fprintf(p.w, "├─ HP:     %d\n", c.HP)
	}
	if len(c.Types) > 0 {
		fmt.Fprintf(p.w, "├─ Types:  %s\n", strings.Join(c.Types, ", "))
	}
	if c.Stage != "" {
		stage := c.Stage
		if c.EvolveFrom != "" {
			stage += ", evolves from " + c.EvolveFrom
		}
		fmt.Fprintf(p.w, "├─ Stage:  %s\n", stage)
	}
	fmt.Fprintf(p.w, "└─ Image:  %s\n", c.Image)
}

// Stats prints the collection summary and breakdowns.
func (p *Printer) Stats(s view.Stats) {
	p.heading("Collection Statistics")
	fmt.Fprintf(p.w, "Total cards:     %d\n", s.TotalCards)
	fmt.Fprintf(p.w, "Unique cards:    %d\n", s.UniqueCards)
	fmt.Fprintf(p.w, "Sets:            %d\n", s.TotalSets)
	fmt.Fprintf(p.w, "Average copies:  %.2f\n", s.AverageCopies)
	fmt.Fprintf(p.w, "Most common condition: %s\n", conditionLabel(s.MostCommonCondition))
	fmt.Fprintf(p.w, "Most common rarity:    %s\n", s.MostCommonRarity)
	if s.UniqueCards == 0 {
		return
	}

	fmt.Fprintln(p.w)
	p.breakdown("Condition", s.Conditions, conditionLabel)
	p.breakdown("Rarity", s.Rarities, nil)
	p.breakdown("Set", s.Sets, nil)
}

func conditionLabel(key string) string {
	if key == view.Unknown || key == view.NotAvailable {
		return key
	}
	return collection.Condition(key).Label()
}

func (p *Printer) breakdown(name string, b view.Breakdown, label func(string) string) {
	rows := make([][]string, 0, len(b))
	for _, c := range b {
		key := c.Key
		if label != nil {
			key = label(key)
		}
		rows = append(rows, []string{key, strconv.Itoa(c.Count)})
	}
	p.table([]string{name, "Count"}, rows)
}

// FilterOptions prints the values the filters accept.
func (p *Printer) FilterOptions(o view.FilterOptions) {
	list := func(name string, vals []string) {
		if len(vals) == 0 {
			vals = []string{"-"}
		}
		fmt.Fprintf(p.w, "%-11s %s\n", name+":", strings.Join(vals, ", "))
	}
	list("Conditions", o.Conditions)
	list("Sets", o.Sets)
	list("Rarities", o.Rarities)
	list("Types", o.Types)
}

// Timings prints request statistics.
func (p *Printer) Timings(s metrics.Summary) {
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf(
		"%d requests, %d errors, %d retries, %d stale discarded (%.1f%% ok)",
		s.Requests, s.Errors, s.Retries, s.StaleDiscards, s.SuccessRate)))
	if len(s.Endpoints) == 0 {
		return
	}
	rows := make([][]string, 0, len(s.Endpoints))
	for _, e := range s.Endpoints {
		rows = append(rows, []string{
			e.Endpoint,
			strconv.Itoa(e.Count),
			fmt.Sprintf("%.1f", e.P50),
			fmt.Sprintf("%.1f", e.P95),
			fmt.Sprintf("%.1f", e.Max),
		})
	}
	p.table([]string{"Endpoint", "Count", "p50 ms", "p95 ms", "max ms"}, rows)
}
