/*
store.go - Persistence interfaces for balances, history and failed events

PURPOSE:
  Defines the interface between the engine and its storage. Each store owns
  exactly one kind of record:
  - AccountStore:   current balance per user (overwritten on Put)
  - HistoryLog:     accepted mutations (append-only)
  - FailedEventLog: rejected mutations (append-only)

CONCURRENCY CONTRACT:
  Implementations only protect their own internal structures. They do NOT
  serialize a Get followed by a Put for the same user; the engine does that
  with the per-user lock before it calls Put.

APPEND-ONLY CONTRACT:
  HistoryLog and FailedEventLog have no Update or Delete. Ids come from one
  global monotonic counter per log, so ids are unique across all users.

IMPLEMENTATIONS:
  - point/store/memory.go: In-memory (default, tests)
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - engine.go: The only writer
*/
package point

import (
	"context"
	"time"
)

// AccountStore holds the current balance of every user.
type AccountStore interface {
	// Get returns the account, or ok=false if the user was never written.
	// Absence is not an error.
	Get(ctx context.Context, userID UserID) (acct Account, ok bool, err error)

	// Put overwrites the balance for userID and returns the stored account.
	Put(ctx context.Context, userID UserID, balance int64, at time.Time) (Account, error)
}

// HistoryLog is the append-only record of accepted mutations.
type HistoryLog interface {
	// Append assigns the next global id and stores the entry.
	Append(ctx context.Context, userID UserID, amount int64, txType TxType, at time.Time) (HistoryEntry, error)

	// ListByUser returns the user's entries in insertion order.
	ListByUser(ctx context.Context, userID UserID) ([]HistoryEntry, error)
}

// FailedEventLog is the append-only record of rejected mutations.
type FailedEventLog interface {
	Append(ctx context.Context, userID UserID, op TxType, amount int64, message string, at time.Time) (FailedEvent, error)
	ListByUser(ctx context.Context, userID UserID) ([]FailedEvent, error)
}

// Stores bundles the three stores the engine orchestrates.
type Stores struct {
	Accounts AccountStore
	History  HistoryLog
	Failures FailedEventLog
}
