// Package store provides in-memory implementations of the point stores.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/warp/point-engine/point"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (default backend, tests)
// =============================================================================

// Memory bundles the three in-memory stores.
type Memory struct {
	Accounts *Accounts
	History  *History
	Failures *FailedEvents
}

// Option configures a Memory store.
type Option func(*options)

type options struct {
	latency time.Duration
}

// WithLatency makes every store call sleep for d before touching data,
// simulating a slow backing table. The sleep happens outside any internal
// mutex, so it never serializes unrelated users.
func WithLatency(d time.Duration) Option {
	return func(o *options) { o.latency = d }
}

func NewMemory(opts ...Option) *Memory {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory{
		Accounts: &Accounts{latency: o.latency, accounts: make(map[point.UserID]point.Account)},
		History:  &History{latency: o.latency, log: newAppendLog[point.HistoryEntry]()},
		Failures: &FailedEvents{latency: o.latency, log: newAppendLog[point.FailedEvent]()},
	}
}

// Stores returns the bundle in the shape the engine expects.
func (m *Memory) Stores() point.Stores {
	return point.Stores{
		Accounts: m.Accounts,
		History:  m.History,
		Failures: m.Failures,
	}
}

// Reset drops every account and log entry. Ids keep counting up so they are
// never reused.
func (m *Memory) Reset(ctx context.Context) error {
	m.Accounts.mu.Lock()
	m.Accounts.accounts = make(map[point.UserID]point.Account)
	m.Accounts.mu.Unlock()

	m.History.log.reset()
	m.Failures.log.reset()
	return ctx.Err()
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type Accounts struct {
	latency  time.Duration
	mu       sync.RWMutex
	accounts map[point.UserID]point.Account
}

func (a *Accounts) Get(ctx context.Context, userID point.UserID) (point.Account, bool, error) {
	if err := pause(ctx, a.latency); err != nil {
		return point.Account{}, false, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	acct, ok := a.accounts[userID]
	return acct, ok, nil
}

func (a *Accounts) Put(ctx context.Context, userID point.UserID, balance int64, at time.Time) (point.Account, error) {
	if err := pause(ctx, a.latency); err != nil {
		return point.Account{}, err
	}
	acct := point.Account{UserID: userID, Balance: balance, UpdatedAt: at}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[userID] = acct
	return acct, nil
}

// =============================================================================
// APPEND-ONLY LOGS
// =============================================================================

// appendLog is a per-user append-only sequence with one global id counter.
// Ids are assigned under the same mutex as the append, so per-user order and
// id order always agree.
type appendLog[T any] struct {
	mu     sync.RWMutex
	seq    int64
	byUser map[point.UserID][]T
}

func newAppendLog[T any]() *appendLog[T] {
	return &appendLog[T]{byUser: make(map[point.UserID][]T)}
}

func (l *appendLog[T]) append(userID point.UserID, build func(id int64) T) T {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	rec := build(l.seq)
	l.byUser[userID] = append(l.byUser[userID], rec)
	return rec
}

func (l *appendLog[T]) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byUser = make(map[point.UserID][]T)
}

func (l *appendLog[T]) list(userID point.UserID) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]T, len(l.byUser[userID]))
	copy(result, l.byUser[userID])
	return result
}

// History is the in-memory HistoryLog.
type History struct {
	latency time.Duration
	log     *appendLog[point.HistoryEntry]
}

func (h *History) Append(ctx context.Context, userID point.UserID, amount int64, txType point.TxType, at time.Time) (point.HistoryEntry, error) {
	if err := pause(ctx, h.latency); err != nil {
		return point.HistoryEntry{}, err
	}
	return h.log.append(userID, func(id int64) point.HistoryEntry {
		return point.HistoryEntry{ID: id, UserID: userID, Amount: amount, Type: txType, Timestamp: at}
	}), nil
}

func (h *History) ListByUser(ctx context.Context, userID point.UserID) ([]point.HistoryEntry, error) {
	if err := pause(ctx, h.latency); err != nil {
		return nil, err
	}
	return h.log.list(userID), nil
}

// FailedEvents is the in-memory FailedEventLog.
type FailedEvents struct {
	latency time.Duration
	log     *appendLog[point.FailedEvent]
}

func (f *FailedEvents) Append(ctx context.Context, userID point.UserID, op point.TxType, amount int64, message string, at time.Time) (point.FailedEvent, error) {
	if err := pause(ctx, f.latency); err != nil {
		return point.FailedEvent{}, err
	}
	return f.log.append(userID, func(id int64) point.FailedEvent {
		return point.FailedEvent{
			ID:           id,
			UserID:       userID,
			Operation:    op,
			Amount:       amount,
			ErrorMessage: message,
			Timestamp:    at,
		}
	}), nil
}

func (f *FailedEvents) ListByUser(ctx context.Context, userID point.UserID) ([]point.FailedEvent, error) {
	if err := pause(ctx, f.latency); err != nil {
		return nil, err
	}
	return f.log.list(userID), nil
}
