package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apiclient"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/catalog"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection/view"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/config"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/display"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/events"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/session"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/storage"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/tracker"
)

type appOptions struct {
	cfg        *config.Config
	configPath string
	stdin      io.Reader
	stdout     io.Writer
	logger     *slog.Logger
}

// app wires one process worth of services. The session manager is the only
// writer of session state; everything else reads it or subscribes.
type app struct {
	cfg        *config.Config
	configPath string
	in         *bufio.Reader
	out        io.Writer
	show       *display.Printer
	logger     *slog.Logger

	db         *storage.DB
	api        *apiclient.Client
	dispatcher *events.EventDispatcher
	sessions   *session.Manager
	tracker    *tracker.Service
	catalog    *catalog.Client
	searcher   *catalog.Searcher
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg := opts.cfg
	a := &app{
		cfg:        cfg,
		configPath: opts.configPath,
		in:         bufio.NewReader(opts.stdin),
		out:        opts.stdout,
		show:       display.New(opts.stdout),
		logger:     opts.logger,
	}

	api, err := apiclient.New(apiclient.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.GetTimeout(),
		RateLimit:  cfg.GetRateLimit(),
		MaxRetries: retries(cfg.API.MaxRetries),
		UserAgent:  cfg.API.UserAgent,
		Logger:     opts.logger,
	})
	if err != nil {
		return nil, err
	}
	a.api = api

	sessOpts := session.Options{CookieTTL: cfg.GetCookieTTL(), Logger: opts.logger}
	if cfg.Session.Persist {
		store, err := a.openCookieStore(ctx)
		if err != nil {
			// The tracker still works, the session just lasts one process.
			opts.logger.Warn("Session persistence disabled", "error", err)
		} else {
			sessOpts.Store = store
		}
	}

	a.dispatcher = events.NewEventDispatcher(opts.logger)
	a.dispatcher.Register(events.NewLoggingObserver(opts.logger))
	a.sessions = session.NewManager(session.NewClient(api, sessOpts), a.dispatcher, opts.logger)

	engine := view.NewEngine(cfg.GetSort(), cfg.View.PageSize)
	a.tracker = tracker.NewService(collection.NewRepository(api), engine, tracker.Options{
		Dispatcher: a.dispatcher,
		Metrics:    api.Metrics(),
		Logger:     opts.logger,
	})
	a.dispatcher.Register(a.tracker.Observer())

	a.catalog = catalog.NewClient(api)
	a.searcher = catalog.NewSearcher(a.catalog)

	a.sessions.Start(ctx)
	if err := a.sessions.Wait(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openCookieStore(ctx context.Context) (*storage.CookieStore, error) {
	db, err := storage.Open(storage.DefaultConfig(a.cfg.StorePath(a.configPath)))
	if err != nil {
		return nil, err
	}
	var enc *storage.EncryptionConfig
	if p := a.cfg.Passphrase(); p != "" {
		enc = storage.DefaultEncryptionConfig(p)
	}
	store, err := storage.NewCookieStore(ctx, db, enc)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if n, err := store.Prune(ctx); err == nil && n > 0 {
		a.logger.Debug("Pruned expired cookies", "count", n)
	}
	a.db = db
	return store, nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Error closing session database", "error", err)
		}
		a.db = nil
	}
}

// requireSession fails unless the probe or a login produced a session.
func (a *app) requireSession() error {
	if !a.sessions.Session().Authenticated {
		return apperror.NewUnauthenticated("not signed in, run 'tcg-tracker login' first")
	}
	return nil
}

// prompt reads one line after printing label.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", apperror.NewValidation("no input")
	}
	return trimLine(line), nil
}

func retries(n int) int {
	if n == 0 {
		return -1
	}
	return n
}
