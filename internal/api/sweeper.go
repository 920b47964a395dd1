package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/store"
)

// SweeperConfig holds configuration for the session sweeper.
type SweeperConfig struct {
	// Interval is how often expired sessions are removed.
	Interval time.Duration

	// SessionTTL is how long a session lives after it was created.
	SessionTTL time.Duration

	// OnSweep is called after each sweep with the number of sessions
	// removed. Optional.
	OnSweep func(removed int)
}

// DefaultSweeperConfig sweeps every ten minutes and expires sessions after
// twelve hours.
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Interval:   10 * time.Minute,
		SessionTTL: 12 * time.Hour,
	}
}

// Sweeper periodically drops expired sessions from a store. Anonymous
// sessions are created on every CSRF token request without a cookie, so the
// session table would otherwise grow without bound.
type Sweeper struct {
	store    *store.Store
	config   *SweeperConfig
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}

	mu        sync.RWMutex
	running   bool
	lastSweep time.Time
	sweeps    int
	removed   int
}

// NewSweeper creates a sweeper for st.
func NewSweeper(st *store.Store, config *SweeperConfig) *Sweeper {
	if config == nil {
		config = DefaultSweeperConfig()
	}
	return &Sweeper{store: st, config: config}
}

// Start starts the sweeper. Returns an error if it is already running.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper is already running")
	}
	if s.config.Interval <= 0 || s.config.SessionTTL <= 0 {
		return fmt.Errorf("sweeper interval and session TTL must be positive")
	}

	s.ticker = time.NewTicker(s.config.Interval)
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.run(s.ticker, s.stopChan, s.done)
	return nil
}

// Stop stops the sweeper and waits for a sweep in progress to finish.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is not running")
	}
	s.ticker.Stop()
	close(s.stopChan)
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	return nil
}

func (s *Sweeper) run(ticker *time.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-stop:
			return
		}
	}
}

// Sweep removes expired sessions now and returns how many were removed.
func (s *Sweeper) Sweep() int {
	n := s.store.PruneSessions(s.config.SessionTTL)

	s.mu.Lock()
	s.lastSweep = time.Now()
	s.sweeps++
	s.removed += n
	s.mu.Unlock()

	if s.config.OnSweep != nil {
		s.config.OnSweep(n)
	}
	return n
}

// IsRunning reports whether the sweeper is running.
func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// SweeperStatus contains information about the sweeper state.
type SweeperStatus struct {
	Running   bool          `json:"running"`
	Interval  time.Duration `json:"interval"`
	LastSweep time.Time     `json:"lastSweep"`
	Sweeps    int           `json:"sweeps"`
	Removed   int           `json:"removed"`
}

// Status returns the current sweeper status.
func (s *Sweeper) Status() SweeperStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SweeperStatus{
		Running:   s.running,
		Interval:  s.config.Interval,
		LastSweep: s.lastSweep,
		Sweeps:    s.sweeps,
		Removed:   s.removed,
	}
}

// String returns a human-readable representation of the status.
func (st SweeperStatus) String() string {
	if !st.Running {
		return "Sweeper: Stopped"
	}
	status := fmt.Sprintf("Sweeper: Running every %s, %d sweeps, %d sessions removed", st.Interval, st.Sweeps, st.Removed)
	if !st.LastSweep.IsZero() {
		status += fmt.Sprintf(", last at %s", st.LastSweep.Format(time.RFC3339))
	}
	return status
}
