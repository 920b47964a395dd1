package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/apitest"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apiclient"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection/view"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/events"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/metrics"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/session"
)

// fakeRepo lets a test hold each List or Update call until released.
type fakeRepo struct {
	mu        sync.Mutex
	listCalls []chan []collection.Item
	updates   chan chan collection.Item
	removeErr error
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (f *fakeRepo) List(ctx context.Context) ([]collection.Item, error) {
	ch := make(chan []collection.Item, 1)
	f.mu.Lock()
	f.listCalls = append(f.listCalls, ch)
	f.mu.Unlock()
	select {
	case items := <-ch:
		return items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeRepo) listCall(t *testing.T, i int) chan []collection.Item {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.listCalls) > i
	}, time.Second, time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[i]
}

func (f *fakeRepo) Add(_ context.Context, req collection.AddRequest) (collection.Item, error) {
	return collection.Item{ID: 100, CardID: req.CardID, Quantity: req.Quantity, Condition: req.Condition}, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, req collection.UpdateRequest) (collection.Item, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxFlight.Load()
		if n <= m || f.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}
	reply := make(chan collection.Item, 1)
	f.updates <- reply
	item := <-reply
	item.ID = id
	item.Quantity = req.Quantity
	return item, nil
}

func (f *fakeRepo) Remove(context.Context, int64) error { return f.removeErr }

func (f *fakeRepo) Stats(context.Context) (collection.ServerStats, error) {
	return collection.ServerStats{}, nil
}

func TestService_StaleLoadDiscarded(t *testing.T) {
	repo := &fakeRepo{}
	m := metrics.NewRequestMetrics()
	svc := NewService(repo, view.NewEngine(view.DefaultSort, 20), Options{Metrics: m})
	ctx := context.Background()

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Load(ctx)
		firstErr <- err
	}()
	first := repo.listCall(t, 0)

	secondDone := make(chan error, 1)
	go func() {
		_, err := svc.Load(ctx)
		secondDone <- err
	}()
	second := repo.listCall(t, 1)

	second <- []collection.Item{{ID: 2, Quantity: 1, Condition: "Mint"}}
	require.NoError(t, <-secondDone)

	first <- []collection.Item{{ID: 1, Quantity: 1, Condition: "Mint"}}
	err := <-firstErr
	assert.True(t, apperror.IsStale(err), "expected StaleResponse, got %v", err)

	items := svc.Engine().Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ID)
	assert.Equal(t, uint64(1), m.StaleDiscards.Load())
}

func TestService_MutationSupersedesPendingLoad(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, svc *Service, repo *fakeRepo)
		check  func(t *testing.T, items []collection.Item)
	}{
		{
			name: "update",
			mutate: func(t *testing.T, svc *Service, repo *fakeRepo) {
				done := make(chan error, 1)
				go func() {
					_, err := svc.Update(context.Background(), 1, collection.UpdateRequest{Quantity: 5, Condition: "Mint"})
					done <- err
				}()
				reply := <-repo.updates
				reply <- collection.Item{Condition: "Mint"}
				require.NoError(t, <-done)
			},
			check: func(t *testing.T, items []collection.Item) {
				require.Len(t, items, 2)
				assert.Equal(t, 5, items[0].Quantity)
			},
		},
		{
			name: "removal",
			mutate: func(t *testing.T, svc *Service, _ *fakeRepo) {
				require.NoError(t, svc.Remove(context.Background(), 1))
			},
			check: func(t *testing.T, items []collection.Item) {
				require.Len(t, items, 1)
				assert.Equal(t, int64(2), items[0].ID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{updates: make(chan chan collection.Item)}
			engine := view.NewEngine(view.SortCriteria{Field: view.SortQuantity, Direction: view.Desc}, 20)
			engine.Load([]collection.Item{{ID: 1, Quantity: 1, Condition: "Mint"}, {ID: 2, Quantity: 1, Condition: "Mint"}})
			svc := NewService(repo, engine, Options{})

			loadErr := make(chan error, 1)
			go func() {
				_, err := svc.Load(context.Background())
				loadErr <- err
			}()
			pending := repo.listCall(t, 0)

			tt.mutate(t, svc, repo)

			// The list was requested before the mutation resolved.
			pending <- []collection.Item{{ID: 1, Quantity: 1, Condition: "Mint"}, {ID: 2, Quantity: 1, Condition: "Mint"}}
			err := <-loadErr
			assert.True(t, apperror.IsStale(err), "expected StaleResponse, got %v", err)
			tt.check(t, svc.View().Page.Items)
		})
	}
}

func TestService_OneUpdatePerItem(t *testing.T) {
	repo := &fakeRepo{updates: make(chan chan collection.Item)}
	engine := view.NewEngine(view.DefaultSort, 20)
	engine.Load([]collection.Item{{ID: 1, Quantity: 1, Condition: "Mint"}})
	svc := NewService(repo, engine, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for q := 2; q <= 3; q++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			_, err := svc.Update(ctx, 1, collection.UpdateRequest{Quantity: q, Condition: "Mint"})
			assert.NoError(t, err)
		}(q)
	}

	// Release each update as it arrives. A second one may only arrive after
	// the first has returned.
	for range 2 {
		reply := <-repo.updates
		assert.Equal(t, int32(1), repo.inFlight.Load())
		reply <- collection.Item{Condition: "Mint"}
	}
	wg.Wait()

	assert.Equal(t, int32(1), repo.maxFlight.Load())
	assert.Zero(t, svc.locks.size())
}

func TestService_UpdateValidatesBeforeLocking(t *testing.T) {
	svc := NewService(&fakeRepo{}, view.NewEngine(view.DefaultSort, 20), Options{})
	_, err := svc.Update(context.Background(), 1, collection.UpdateRequest{Quantity: 0, Condition: "Mint"})
	assert.True(t, apperror.IsValidation(err))
}

func TestService_RemoveNotFoundIsSuccess(t *testing.T) {
	repo := &fakeRepo{removeErr: apperror.NewNotFound("gone")}
	engine := view.NewEngine(view.DefaultSort, 20)
	engine.Load([]collection.Item{{ID: 1}, {ID: 2}})
	svc := NewService(repo, engine, Options{})

	require.NoError(t, svc.Remove(context.Background(), 1))
	require.NoError(t, svc.Remove(context.Background(), 1))
	assert.Len(t, engine.Items(), 1)

	repo.removeErr = apperror.NewServerRejected(500, "")
	assert.Error(t, svc.Remove(context.Background(), 2))
	assert.Len(t, engine.Items(), 1, "failed removal must not touch the view")
}

func TestService_LockRespectsContext(t *testing.T) {
	locks := newKeyedLocks()
	unlock, err := locks.lock(context.Background(), 7)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.lock(ctx, 7)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, locks.size())
}

func TestService_EndToEnd(t *testing.T) {
	backend := apitest.New(t)
	api, err := apiclient.New(apiclient.Config{BaseURL: backend.BaseURL()})
	require.NoError(t, err)

	dispatcher := events.NewEventDispatcher(nil)
	manager := session.NewManager(session.NewClient(api, session.Options{}), dispatcher, nil)
	svc := NewService(collection.NewRepository(api), view.NewEngine(view.DefaultSort, 20), Options{
		Dispatcher: dispatcher,
		Metrics:    api.Metrics(),
	})
	dispatcher.Register(svc.Observer())

	var ops []string
	dispatcher.Register(events.NewFuncObserver("ops", func(e events.Event) error {
		if p, ok := events.GetTypedData[events.CollectionChangedEvent](e); ok {
			ops = append(ops, p.Op)
		}
		return nil
	}, events.CollectionChanged))

	ctx := context.Background()
	manager.Start(ctx)
	require.NoError(t, manager.Wait(ctx))
	_, err = manager.Login(ctx, session.Credentials{Email: apitest.Email, Password: apitest.Password})
	require.NoError(t, err)

	st, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.SourceCount)

	pika, err := svc.Add(ctx, collection.AddRequest{CardID: "base1-58", Variant: collection.Normal, Quantity: 2, Condition: collection.Mint})
	require.NoError(t, err)
	_, err = svc.Add(ctx, collection.AddRequest{CardID: "base1-44", Variant: collection.Normal, Quantity: 1, Condition: collection.NearMint})
	require.NoError(t, err)

	_, err = svc.Update(ctx, pika.ID, collection.UpdateRequest{Quantity: 4, Condition: collection.Mint})
	require.NoError(t, err)

	svc.SetSearch("pika")
	st = svc.View()
	require.Len(t, st.Page.Items, 1)
	assert.Equal(t, 4, st.Page.Items[0].Quantity)

	stats := svc.Stats()
	assert.Equal(t, 5, stats.TotalCards)
	assert.Equal(t, 2, stats.UniqueCards)
	assert.Equal(t, []string{"Base Set"}, svc.FilterOptions().Sets)

	require.NoError(t, svc.Remove(ctx, pika.ID))
	require.NoError(t, svc.Remove(ctx, pika.ID))
	_, ok := svc.Item(pika.ID)
	assert.False(t, ok)

	manager.Logout(ctx)
	assert.Empty(t, svc.Engine().Items())
	assert.False(t, svc.Engine().Loaded())
	assert.Equal(t, events.OpCleared, ops[len(ops)-1])
}
