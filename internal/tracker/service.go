// Package tracker coordinates the collection repository with the view
// engine: loads apply only when still current, and each mutation is
// reconciled into the view after the server confirms it.
package tracker

import (
	"context"
	"log/slog"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection/view"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/events"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/metrics"
)

// Repository is the subset of collection.Repository the service uses.
type Repository interface {
	List(ctx context.Context) ([]collection.Item, error)
	Add(ctx context.Context, req collection.AddRequest) (collection.Item, error)
	Update(ctx context.Context, id int64, req collection.UpdateRequest) (collection.Item, error)
	Remove(ctx context.Context, id int64) error
	Stats(ctx context.Context) (collection.ServerStats, error)
}

// Options configures a Service.
type Options struct {
	// Dispatcher receives collection:changed events. Optional.
	Dispatcher *events.EventDispatcher

	// Metrics counts discarded stale loads. Optional.
	Metrics *metrics.RequestMetrics

	Logger *slog.Logger
}

// Service owns the user's in-memory collection for the process lifetime.
type Service struct {
	repo       Repository
	engine     *view.Engine
	dispatcher *events.EventDispatcher
	metrics    *metrics.RequestMetrics
	logger     *slog.Logger
	locks      *keyedLocks
}

// NewService creates a service over repo and engine.
func NewService(repo Repository, engine *view.Engine, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		engine:     engine,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With("component", "tracker"),
		locks:      newKeyedLocks(),
	}
}

// Engine returns the view engine.
func (s *Service) Engine() *view.Engine {
	return s.engine
}

// Load fetches the collection. If another load starts before this one
// resolves, the older result is dropped and a StaleResponse error returned.
func (s *Service) Load(ctx context.Context) (view.State, error) {
	ticket := s.engine.BeginLoad()

	items, err := s.repo.List(ctx)
	if err != nil {
		return view.State{}, err
	}
	if !s.engine.CompleteLoad(ticket, items) {
		s.discardStale("collection list")
		return view.State{}, apperror.NewStale("collection list")
	}

	s.logger.Debug("Collection loaded", "items", len(items))
	s.publish(ctx, events.OpLoaded, 0)
	return s.engine.View(), nil
}

// Add creates an item and appends it to the view.
func (s *Service) Add(ctx context.Context, req collection.AddRequest) (collection.Item, error) {
	item, err := s.repo.Add(ctx, req)
	if err != nil {
		return collection.Item{}, err
	}
	s.engine.ApplyAdd(item)
	s.publish(ctx, events.OpAdded, item.ID)
	return item, nil
}

// Update replaces the mutable fields of item id. Updates to the same id run
// one at a time, and each is applied to the view when it resolves.
func (s *Service) Update(ctx context.Context, id int64, req collection.UpdateRequest) (collection.Item, error) {
	if err := req.Validate(); err != nil {
		return collection.Item{}, err
	}
	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return collection.Item{}, apperror.NewNetwork(err)
	}
	defer unlock()

	item, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return collection.Item{}, err
	}
	if !s.engine.ApplyUpdate(item) {
		s.logger.Debug("Updated item is not in the view", "id", id)
	}
	s.publish(ctx, events.OpUpdated, id)
	return item, nil
}

// Remove deletes item id. An item the server no longer has counts as
// removed.
func (s *Service) Remove(ctx context.Context, id int64) error {
	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return apperror.NewNetwork(err)
	}
	defer unlock()

	if err := s.repo.Remove(ctx, id); err != nil {
		if !apperror.IsNotFound(err) {
			return err
		}
		s.logger.Debug("Item already removed", "id", id)
	}
	s.engine.ApplyRemoval(id)
	s.publish(ctx, events.OpRemoved, id)
	return nil
}

// Item returns the item with id from the loaded collection.
func (s *Service) Item(id int64) (collection.Item, bool) {
	for _, it := range s.engine.Items() {
		if it.ID == id {
			return it, true
		}
	}
	return collection.Item{}, false
}

// View returns the current page.
func (s *Service) View() view.State { return s.engine.View() }

// SetSearch delegates to the engine.
func (s *Service) SetSearch(text string) { s.engine.SetSearch(text) }

// SetFilter delegates to the engine.
func (s *Service) SetFilter(f view.FilterCriteria) { s.engine.SetFilter(f) }

// SetSort delegates to the engine.
func (s *Service) SetSort(c view.SortCriteria) { s.engine.SetSort(c) }

// SetPage delegates to the engine.
func (s *Service) SetPage(n int) { s.engine.SetPage(n) }

// SetPageSize delegates to the engine.
func (s *Service) SetPageSize(n int) { s.engine.SetPageSize(n) }

// FilterOptions lists the filter values present in the loaded collection.
func (s *Service) FilterOptions() view.FilterOptions {
	return view.BuildFilterOptions(s.engine.Items())
}

// Stats summarises the loaded collection.
func (s *Service) Stats() view.Stats {
	return view.ComputeStats(s.engine.Items())
}

// ServerStats asks the backend for its totals.
func (s *Service) ServerStats(ctx context.Context) (collection.ServerStats, error) {
	return s.repo.Stats(ctx)
}

// Observer returns an observer that empties the view whenever the session
// ends, so one user's collection is never shown to the next.
func (s *Service) Observer() events.Observer {
	return events.NewFuncObserver("tracker", func(e events.Event) error {
		p, ok := events.GetTypedData[events.SessionChangedEvent](e)
		if !ok || p.Authenticated {
			return nil
		}
		s.Reset(e.Context)
		return nil
	}, events.SessionChanged)
}

// Reset empties the view and supersedes any load in flight.
func (s *Service) Reset(ctx context.Context) {
	s.engine.Reset()
	s.publish(ctx, events.OpCleared, 0)
}

func (s *Service) discardStale(what string) {
	if s.metrics != nil {
		s.metrics.StaleDiscards.Add(1)
	}
	s.logger.Debug("Discarding superseded response", "what", what)
}

func (s *Service) publish(ctx context.Context, op string, id int64) {
	if s.dispatcher == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.dispatcher.Dispatch(events.NewTypedEvent(ctx, events.CollectionChanged, events.CollectionChangedEvent{
		Op:     op,
		ItemID: id,
		Count:  len(s.engine.Items()),
	}))
}
