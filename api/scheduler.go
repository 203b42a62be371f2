/*
scheduler.go - Idle lock sweeper

PURPOSE:
  The lock registry creates one lock per user on first use and never drops
  it on its own. For long-running servers with many distinct users the
  sweeper periodically prunes locks nobody holds, keeping the registry
  bounded by the number of recently active users.

DESIGN:
  - Runs a background goroutine with configurable sweep interval
  - Held locks are skipped, never waited on
  - A pruned user simply gets a fresh lock on the next request
  - Sweeps are logged only when they removed something

CONFIGURATION:
  - Interval: How often to sweep (default: 10 minutes, POINT_LOCK_SWEEP_INTERVAL)
  - Enabled:  Whether the sweeper runs (interval <= 0 disables it)

USAGE:
  sweeper := NewLockSweeper(engine.Locks)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - point/locks.go: LockRegistry.Prune / PruneIdle
*/
package api

import (
	"log"
	"sync"
	"time"

	"github.com/warp/point-engine/point"
)

// DefaultSweepInterval is how often idle locks are pruned by default.
const DefaultSweepInterval = 10 * time.Minute

// LockSweeper prunes idle per-user locks on a timer.
type LockSweeper struct {
	Locks    *point.LockRegistry
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	statsMu    sync.Mutex
	lastSweep  time.Time
	lastPruned int
}

// NewLockSweeper creates a sweeper with the default interval.
func NewLockSweeper(locks *point.LockRegistry) *LockSweeper {
	return &LockSweeper{
		Locks:    locks,
		Interval: DefaultSweepInterval,
		Enabled:  true,
	}
}

// Start begins sweeping. Calling Start on a running sweeper does nothing.
func (s *LockSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.Interval <= 0 {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	log.Printf("[Sweeper] Started with interval: %v", s.Interval)
}

// Stop stops the sweeper and waits for an in-flight sweep to finish.
func (s *LockSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	log.Println("[Sweeper] Stopped")
}

func (s *LockSweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-stop:
			return
		}
	}
}

func (s *LockSweeper) sweep() int {
	pruned := s.Locks.PruneIdle()
	if pruned > 0 {
		log.Printf("[Sweeper] Pruned %d idle locks, %d remain", pruned, s.Locks.Len())
	}

	s.statsMu.Lock()
	s.lastSweep = time.Now()
	s.lastPruned = pruned
	s.statsMu.Unlock()
	return pruned
}

// RunNow sweeps immediately (for testing/admin) and returns how many locks
// were pruned.
func (s *LockSweeper) RunNow() int {
	return s.sweep()
}

// LastSweep returns when the last sweep ran and how many locks it pruned.
func (s *LockSweeper) LastSweep() (time.Time, int) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.lastSweep, s.lastPruned
}
