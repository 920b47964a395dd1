// Command tcg-tracker is a terminal client for a personal trading card
// collection: sign in, browse and filter the collection, and record
// additions, edits and removals against the collection API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/config"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/display"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/version"
)

// errUsage marks a command line that could not be parsed. The flag package
// has already printed the details.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// globalFlags are accepted before the subcommand.
type globalFlags struct {
	configPath string
	baseURL    string
	debug      bool
	timings    bool
}

func parseGlobal(args []string, stderr io.Writer) (globalFlags, []string, error) {
	var g globalFlags
	fs := flag.NewFlagSet("tcg-tracker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.configPath, "config", "", "Path to config.toml (default: ~/.tcg-tracker/config.toml)")
	fs.StringVar(&g.baseURL, "api", "", "API base URL including /api (overrides config)")
	fs.BoolVar(&g.debug, "debug-mode", false, "Enable verbose debug logging")
	fs.BoolVar(&g.debug, "d", false, "Enable debug logging (shorthand for -debug-mode)")
	fs.BoolVar(&g.timings, "timings", false, "Print request timing statistics on exit")
	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return g, nil, errUsage
	}
	return g, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	g, rest, err := parseGlobal(args, stderr)
	if err != nil {
		return 2
	}
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}

	if g.configPath == "" {
		if g.configPath, err = config.DefaultPath(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if g.baseURL != "" {
		cfg.API.BaseURL = g.baseURL
	}
	if g.debug {
		cfg.App.DebugMode = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	logger := newLogger(stderr, cfg.App.DebugMode)
	slog.SetDefault(logger)

	name, cmdArgs := rest[0], rest[1:]
	switch name {
	case "version":
		printVersion(stdout)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command %q\n\n", name)
		printUsage(stderr)
		return 2
	}

	a, err := newApp(ctx, appOptions{
		cfg:        cfg,
		configPath: g.configPath,
		stdin:      stdin,
		stdout:     stdout,
		logger:     logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	err = cmd.run(ctx, a, cmdArgs)
	if g.timings {
		display.New(stderr).Timings(a.api.Metrics().Summary())
	}
	return exitCode(err, stderr)
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	case apperror.IsStale(err):
		// Superseded work is not an error the user needs to see.
		return 0
	}
	fmt.Fprintf(stderr, "Error: %s\n", apperror.UserMessage(err))
	slog.Debug("Command failed", "error", err)
	return 1
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "tcg-tracker %s\n", version.GetVersion())
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "TCG Collection Tracker")
	fmt.Fprintln(w, "======================")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: tcg-tracker [global flags] <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-9s - %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "  version   - Print the version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprintln(w, "  -config path   Config file (default ~/.tcg-tracker/config.toml)")
	fmt.Fprintln(w, "  -api url       API base URL, e.g. http://localhost:8080/api")
	fmt.Fprintln(w, "  -d             Debug logging")
	fmt.Fprintln(w, "  -timings       Print request timings on exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  tcg-tracker login -email ash@example.com")
	fmt.Fprintln(w, "  tcg-tracker list -search pika -sort quantity -dir asc")
	fmt.Fprintln(w, "  tcg-tracker add -card base1-58 -quantity 2 -condition near_mint")
	fmt.Fprintln(w, "  tcg-tracker stats -chart stats.html")
}
