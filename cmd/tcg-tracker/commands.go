package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/charts"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection/view"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/config"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/display"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/session"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/tracker"
)

const envPassword = "TCG_PASSWORD"

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var (
	commands     map[string]command
	commandOrder = []string{
		"login", "logout", "whoami", "register",
		"list", "show", "add", "update", "remove", "filters",
		"search", "card", "stats", "shell",
	}
)

func init() {
	commands = map[string]command{
		"login":    {"Sign in and keep the session for later commands", cmdLogin},
		"logout":   {"Sign out and forget the stored session", cmdLogout},
		"whoami":   {"Show the signed-in user", cmdWhoami},
		"register": {"Create an account", cmdRegister},
		"list":     {"List the collection (search, filter, sort, page)", cmdList},
		"show":     {"Show one collection item", cmdShow},
		"add":      {"Add a card to the collection", cmdAdd},
		"update":   {"Change quantity, condition, variant or notes of an item", cmdUpdate},
		"remove":   {"Remove an item from the collection", cmdRemove},
		"filters":  {"List the filter values present in the collection", cmdFilters},
		"search":   {"Search the card catalog by name", cmdSearch},
		"card":     {"Show a catalog card", cmdCard},
		"stats":    {"Collection statistics, optionally as an HTML chart", cmdStats},
		"shell":    {"Interactive session", cmdShell},
	}
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "login")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (default: $"+envPassword+" or prompt)")
	if err := parse(fs, args); err != nil {
		return err
	}

	creds, err := a.credentials(*email, *password)
	if err != nil {
		return err
	}
	s, err := a.sessions.Login(ctx, session.Credentials{Email: creds.Email, Password: creds.Password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", s.Username())
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "register")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (default: $"+envPassword+" or prompt)")
	if err := parse(fs, args); err != nil {
		return err
	}

	creds, err := a.credentials(*email, *password)
	if err != nil {
		return err
	}
	user, err := a.sessions.Register(ctx, session.Registration{Email: creds.Email, Password: creds.Password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %s. Run 'tcg-tracker login' to sign in.\n", user.Username)
	return nil
}

func (a *app) credentials(email, password string) (session.Credentials, error) {
	var err error
	if email == "" {
		if email, err = a.prompt("Email: "); err != nil {
			return session.Credentials{}, err
		}
	}
	if password == "" {
		password = os.Getenv(envPassword)
	}
	if password == "" {
		if password, err = a.prompt("Password: "); err != nil {
			return session.Credentials{}, err
		}
	}
	return session.Credentials{Email: email, Password: password}, nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	a.sessions.Logout(ctx)
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	s := a.sessions.Session()
	if !s.Authenticated {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	fmt.Fprintf(a.out, "%s (%s)\n", s.Username(), s.User.Email)
	return nil
}

// viewFlags are shared by list and the shell's list command. Only flags
// given on the command line change the view.
type viewFlags struct {
	search, condition, set, rarity, typ string
	sort, dir                           string
	page, size                          int
}

func (v *viewFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&v.search, "search", "", "Match card or set name")
	fs.StringVar(&v.condition, "condition", "", "Exact condition, e.g. near_mint")
	fs.StringVar(&v.set, "set", "", "Exact set name")
	fs.StringVar(&v.rarity, "rarity", "", "Exact rarity")
	fs.StringVar(&v.typ, "type", "", "Card type, e.g. Fire")
	fs.StringVar(&v.sort, "sort", "", "name, condition, dateAdded or quantity")
	fs.StringVar(&v.dir, "dir", "", "asc or desc")
	fs.IntVar(&v.page, "page", 1, "Page number")
	fs.IntVar(&v.size, "size", 0, "Page size (default from config)")
}

// apply changes the view settings. Every setter but SetPage resets the page,
// so the page goes last.
func (v *viewFlags) apply(fs *flag.FlagSet, svc *tracker.Service) error {
	cur := svc.View()
	query, sort := cur.Query, cur.Sort
	var sortSet, sizeSet, pageSet bool
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "search":
			query.Search = v.search
		case "condition":
			query.Filter.Condition = v.condition
		case "set":
			query.Filter.Set = v.set
		case "rarity":
			query.Filter.Rarity = v.rarity
		case "type":
			query.Filter.Type = v.typ
		case "sort", "dir":
			sortSet = true
		case "size":
			sizeSet = true
		case "page":
			pageSet = true
		}
	})

	if sortSet {
		field, dir := v.sort, v.dir
		if field == "" {
			field = string(sort.Field)
		}
		if dir == "" {
			dir = string(sort.Direction)
		}
		parsed, err := view.ParseSort(field, dir)
		if err != nil {
			return err
		}
		sort = parsed
	}
	if sizeSet && (v.size < 1 || v.size > config.MaxPageSize) {
		return apperror.NewValidationf("page size must be between 1 and %d", config.MaxPageSize)
	}

	if query.Search != cur.Query.Search {
		svc.SetSearch(query.Search)
	}
	if query.Filter != cur.Query.Filter {
		svc.SetFilter(query.Filter)
	}
	if sortSet {
		svc.SetSort(sort)
	}
	if sizeSet {
		svc.SetPageSize(v.size)
	}
	if pageSet {
		svc.SetPage(v.page)
	}
	return nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "list")
	var vf viewFlags
	vf.register(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := vf.apply(fs, a.tracker); err != nil {
		return err
	}
	if err := a.loaded(ctx); err != nil {
		return err
	}
	a.show.Page(a.tracker.View())
	return nil
}

// loaded fetches the collection once per process.
func (a *app) loaded(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if a.tracker.Engine().Loaded() {
		return nil
	}
	_, err := a.tracker.Load(ctx)
	return err
}

func itemID(fs *flag.FlagSet, flagValue int64) (int64, error) {
	if flagValue != 0 {
		return flagValue, nil
	}
	if fs.NArg() == 0 {
		return 0, apperror.NewValidation("item id is required")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewValidationf("invalid item id %q", fs.Arg(0))
	}
	return id, nil
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "show")
	idFlag := fs.Int64("id", 0, "Item id")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := itemID(fs, *idFlag)
	if err != nil {
		return err
	}
	if err := a.loaded(ctx); err != nil {
		return err
	}
	item, ok := a.tracker.Item(id)
	if !ok {
		return apperror.NewNotFound(fmt.Sprintf("item %d is not in your collection", id))
	}
	a.show.Item(item)
	return nil
}

func cmdAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "add")
	cardID := fs.String("card", "", "Catalog card id, e.g. base1-58")
	quantity := fs.Int("quantity", 1, "Number of copies")
	condition := fs.String("condition", string(collection.NearMint), "Condition")
	variant := fs.String("variant", string(collection.Normal), "Variant")
	notes := fs.String("notes", "", "Notes (up to 500 characters)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *cardID == "" && fs.NArg() > 0 {
		*cardID = fs.Arg(0)
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	item, err := a.tracker.Add(ctx, collection.AddRequest{
		CardID:    *cardID,
		Variant:   collection.Variant(*variant),
		Quantity:  *quantity,
		Condition: collection.Condition(*condition),
		Notes:     *notes,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added item %d: %s x%d\n", item.ID, display.ItemName(item), item.Quantity)
	return nil
}

func cmdUpdate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "update")
	idFlag := fs.Int64("id", 0, "Item id")
	quantity := fs.Int("quantity", 0, "Number of copies")
	condition := fs.String("condition", "", "Condition")
	variant := fs.String("variant", "", "Variant")
	notes := fs.String("notes", "", "Notes, replaces the current ones")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := itemID(fs, *idFlag)
	if err != nil {
		return err
	}
	if err := a.loaded(ctx); err != nil {
		return err
	}
	current, ok := a.tracker.Item(id)
	if !ok {
		return apperror.NewNotFound(fmt.Sprintf("item %d is not in your collection", id))
	}

	req := collection.UpdateFrom(current)
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "quantity":
			req.Quantity = *quantity
		case "condition":
			req.Condition = collection.Condition(*condition)
		case "variant":
			req.Variant = collection.Variant(*variant)
		case "notes":
			req.Notes = *notes
		}
	})

	item, err := a.tracker.Update(ctx, id, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated item %d\n", item.ID)
	a.show.Item(item)
	return nil
}

func cmdRemove(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "remove")
	idFlag := fs.Int64("id", 0, "Item id")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := itemID(fs, *idFlag)
	if err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}
	if err := a.tracker.Remove(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed item %d\n", id)
	return nil
}

func cmdFilters(ctx context.Context, a *app, _ []string) error {
	if err := a.loaded(ctx); err != nil {
		return err
	}
	a.show.FilterOptions(a.tracker.FilterOptions())
	return nil
}

func cmdSearch(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "search")
	if err := parse(fs, args); err != nil {
		return err
	}
	cards, err := a.searcher.Search(ctx, strings.Join(fs.Args(), " "))
	if err != nil {
		return err
	}
	a.show.Cards(cards)
	return nil
}

func cmdCard(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "card")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return apperror.NewValidation("usage: card <id>")
	}
	card, err := a.catalog.Card(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	a.show.Card(card)
	return nil
}

func cmdStats(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "stats")
	chartPath := fs.String("chart", "", "Write an HTML chart page to this path")
	open := fs.Bool("open", false, "Open the chart in the browser")
	server := fs.Bool("server", false, "Also show the server's totals")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.loaded(ctx); err != nil {
		return err
	}

	stats := a.tracker.Stats()
	a.show.Stats(stats)

	if *server {
		totals, err := a.tracker.ServerStats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Server totals: %d cards, %d unique card ids\n", totals.TotalCards, totals.UniqueCards)
	}

	if *chartPath != "" {
		if err := charts.RenderStatsFile(*chartPath, stats, charts.DefaultChartConfig()); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Chart written to %s\n", *chartPath)
		if *open {
			if err := charts.OpenInBrowser(*chartPath); err != nil {
				a.logger.Warn("Could not open browser", "error", err)
			}
		}
	}
	return nil
}
