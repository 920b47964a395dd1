package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection/view"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/config"
)

const shellPrompt = "tcg> "

// cmdShell reads commands until quit or end of input. The collection is
// loaded once and kept current by the tracker's reconciliation, so list,
// next and prev work offline from the last load.
func cmdShell(ctx context.Context, a *app, _ []string) error {
	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		a.watchConfig(watchCtx)
	}()
	defer func() {
		stopWatch()
		<-watchDone
	}()

	fmt.Fprintln(a.out, "TCG Collection Tracker. Type 'help' for commands, 'quit' to leave.")
	if s := a.sessions.Session(); s.Authenticated {
		fmt.Fprintf(a.out, "Signed in as %s\n", s.Username())
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(a.out, shellPrompt)
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return err
		}

		args, err := splitArgs(trimLine(line))
		if err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if quit := a.shellLine(ctx, args[0], args[1:]); quit {
			return nil
		}
	}
}

// shellLine runs one command and reports whether the shell should exit.
func (a *app) shellLine(ctx context.Context, name string, args []string) bool {
	var err error
	switch name {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		a.shellHelp()
		return false
	case "next", "n":
		err = a.movePage(ctx, 1)
	case "prev", "p":
		err = a.movePage(ctx, -1)
	case "reload", "r":
		if err = a.requireSession(); err == nil {
			_, err = a.tracker.Load(ctx)
		}
		if err == nil {
			a.show.Page(a.tracker.View())
		}
	case "clear":
		a.tracker.SetSearch("")
		a.tracker.SetFilter(view.FilterCriteria{})
		err = cmdList(ctx, a, nil)
	case "shell":
		fmt.Fprintln(a.out, "Already in the shell")
		return false
	default:
		cmd, ok := commands[name]
		if !ok {
			fmt.Fprintf(a.out, "Unknown command %q, type 'help' for a list\n", name)
			return false
		}
		err = cmd.run(ctx, a, args)
	}

	switch {
	case err == nil, errors.Is(err, errUsage), apperror.IsStale(err):
	default:
		fmt.Fprintf(a.out, "Error: %s\n", apperror.UserMessage(err))
		a.logger.Debug("Shell command failed", "command", name, "error", err)
	}
	return false
}

func (a *app) movePage(ctx context.Context, delta int) error {
	if err := a.loaded(ctx); err != nil {
		return err
	}
	page := a.tracker.View().Page
	target := page.Number + delta
	if target < 1 || (delta > 0 && !page.HasNext()) {
		fmt.Fprintln(a.out, "No more pages")
		return nil
	}
	a.tracker.SetPage(target)
	a.show.Page(a.tracker.View())
	return nil
}

func (a *app) shellHelp() {
	fmt.Fprintln(a.out, "Commands:")
	for _, name := range commandOrder {
		if name == "shell" {
			continue
		}
		fmt.Fprintf(a.out, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(a.out, "  next      Next page (n)")
	fmt.Fprintln(a.out, "  prev      Previous page (p)")
	fmt.Fprintln(a.out, "  reload    Fetch the collection again (r)")
	fmt.Fprintln(a.out, "  clear     Clear search and filters")
	fmt.Fprintln(a.out, "  quit      Leave the shell (q)")
	fmt.Fprintln(a.out, "Use '<command> -h' for options. Quote values with spaces: add -card base1-58 -notes \"binder 2\"")
}

// watchConfig applies page size and sort changes to the running view.
func (a *app) watchConfig(ctx context.Context) {
	if a.configPath == "" {
		return
	}
	pageSize, sort := a.cfg.View.PageSize, a.cfg.GetSort()
	err := config.Watch(ctx, a.configPath, a.logger, func(cfg *config.Config) {
		if cfg.View.PageSize != pageSize {
			pageSize = cfg.View.PageSize
			a.tracker.SetPageSize(pageSize)
			a.logger.Info("Page size changed", "size", pageSize)
		}
		if next := cfg.GetSort(); next != sort {
			sort = next
			a.tracker.SetSort(sort)
			a.logger.Info("Sort changed", "field", sort.Field, "direction", sort.Direction)
		}
	})
	if err != nil {
		a.logger.Debug("Config changes will not be picked up", "error", err)
	}
}

func trimLine(s string) string {
	return strings.TrimRight(s, "\r\n")
}

// splitArgs splits a line on spaces. Double quotes group words and a
// backslash escapes the next character.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		inWord  bool
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped, inWord = true, true
		case r == '"':
			inQuote, inWord = !inQuote, true
		case (r == ' ' || r == '\t') && !inQuote:
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inQuote {
		return nil, apperror.NewValidation("unterminated quote")
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
