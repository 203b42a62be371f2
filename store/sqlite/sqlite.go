/*
Package sqlite provides a SQLite-backed implementation of the point stores.

PURPOSE:
  Implements point.AccountStore, point.HistoryLog and point.FailedEventLog on
  one SQLite database. Store.Stores() hands the engine all three.

KEY TABLES:
  user_points:          Current balance per user (upserted)
  point_histories:      Accepted mutations (append-only)
  point_failed_events:  Rejected mutations (append-only)

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on point_histories / point_failed_events
  - Ids come from AUTOINCREMENT, so they are global and never reused

TIMESTAMPS:
  Stored as unix milliseconds (update_millis). 0 means "never".

CONCURRENCY:
  Uses sync.RWMutex around the *sql.DB, and a single connection so that
  ":memory:" databases are shared by every caller. Per-user serialization of
  read-modify-write is the engine's job, not the store's.

USAGE:
  store, err := sqlite.New("./data/points.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := point.NewEngine(store.Stores(), point.DefaultPolicy())

SEE ALSO:
  - point/store.go: Interface definitions
  - point/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/point-engine/point"
)

// Store implements all point storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on"
	if dbPath != ":memory:" {
		dsn += "&_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stores returns the three store views over this database.
func (s *Store) Stores() point.Stores {
	return point.Stores{
		Accounts: &accountStore{s},
		History:  &historyLog{s},
		Failures: &failedEventLog{s},
	}
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Current balance per user
	CREATE TABLE IF NOT EXISTS user_points (
		user_id INTEGER PRIMARY KEY,
		point INTEGER NOT NULL CHECK (point >= 0),
		update_millis INTEGER NOT NULL
	);

	-- Accepted mutations (append-only)
	CREATE TABLE IF NOT EXISTS point_histories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		tx_type TEXT NOT NULL CHECK (tx_type IN ('CHARGE', 'USE')),
		update_millis INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_point_histories_user
		ON point_histories(user_id, id);

	-- Rejected mutations (append-only)
	CREATE TABLE IF NOT EXISTS point_failed_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		operation TEXT NOT NULL,
		amount INTEGER NOT NULL,
		error_message TEXT NOT NULL,
		update_millis INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_point_failed_events_user
		ON point_failed_events(user_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes every row. Dev/test only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"user_points", "point_histories", "point_failed_events"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// ACCOUNT STORE (point.AccountStore interface)
// =============================================================================

type accountStore struct{ s *Store }

func (a *accountStore) Get(ctx context.Context, userID point.UserID) (point.Account, bool, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	var (
		balance int64
		millis  int64
	)
	err := a.s.db.QueryRowContext(ctx,
		"SELECT point, update_millis FROM user_points WHERE user_id = ?",
		int64(userID),
	).Scan(&balance, &millis)

	if err == sql.ErrNoRows {
		return point.Account{}, false, nil
	}
	if err != nil {
		return point.Account{}, false, fmt.Errorf("failed to get user point: %w", err)
	}

	return point.Account{UserID: userID, Balance: balance, UpdatedAt: fromMillis(millis)}, true, nil
}

func (a *accountStore) Put(ctx context.Context, userID point.UserID, balance int64, at time.Time) (point.Account, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	query := `
		INSERT INTO user_points (user_id, point, update_millis)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			point = excluded.point,
			update_millis = excluded.update_millis
	`

	if _, err := a.s.db.ExecContext(ctx, query, int64(userID), balance, toMillis(at)); err != nil {
		return point.Account{}, fmt.Errorf("failed to put user point: %w", err)
	}
	return point.Account{UserID: userID, Balance: balance, UpdatedAt: fromMillis(toMillis(at))}, nil
}

// =============================================================================
// HISTORY LOG (point.HistoryLog interface)
// =============================================================================

type historyLog struct{ s *Store }

func (h *historyLog) Append(ctx context.Context, userID point.UserID, amount int64, txType point.TxType, at time.Time) (point.HistoryEntry, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	res, err := h.s.db.ExecContext(ctx,
		"INSERT INTO point_histories (user_id, amount, tx_type, update_millis) VALUES (?, ?, ?, ?)",
		int64(userID), amount, string(txType), toMillis(at),
	)
	if err != nil {
		return point.HistoryEntry{}, fmt.Errorf("failed to append history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return point.HistoryEntry{}, fmt.Errorf("failed to read history id: %w", err)
	}

	return point.HistoryEntry{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Type:      txType,
		Timestamp: fromMillis(toMillis(at)),
	}, nil
}

func (h *historyLog) ListByUser(ctx context.Context, userID point.UserID) ([]point.HistoryEntry, error) {
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()

	rows, err := h.s.db.QueryContext(ctx, `
		SELECT id, amount, tx_type, update_millis
		FROM point_histories
		WHERE user_id = ?
		ORDER BY id ASC
	`, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query histories: %w", err)
	}
	defer rows.Close()

	entries := []point.HistoryEntry{}
	for rows.Next() {
		var (
			e      = point.HistoryEntry{UserID: userID}
			txType string
			millis int64
		)
		if err := rows.Scan(&e.ID, &e.Amount, &txType, &millis); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Type = point.TxType(txType)
		e.Timestamp = fromMillis(millis)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// FAILED EVENT LOG (point.FailedEventLog interface)
// =============================================================================

type failedEventLog struct{ s *Store }

func (f *failedEventLog) Append(ctx context.Context, userID point.UserID, op point.TxType, amount int64, message string, at time.Time) (point.FailedEvent, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	res, err := f.s.db.ExecContext(ctx, `
		INSERT INTO point_failed_events (user_id, operation, amount, error_message, update_millis)
		VALUES (?, ?, ?, ?, ?)
	`, int64(userID), string(op), amount, message, toMillis(at))
	if err != nil {
		return point.FailedEvent{}, fmt.Errorf("failed to append failed event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return point.FailedEvent{}, fmt.Errorf("failed to read failed event id: %w", err)
	}

	return point.FailedEvent{
		ID:           id,
		UserID:       userID,
		Operation:    op,
		Amount:       amount,
		ErrorMessage: message,
		Timestamp:    fromMillis(toMillis(at)),
	}, nil
}

func (f *failedEventLog) ListByUser(ctx context.Context, userID point.UserID) ([]point.FailedEvent, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	rows, err := f.s.db.QueryContext(ctx, `
		SELECT id, operation, amount, error_message, update_millis
		FROM point_failed_events
		WHERE user_id = ?
		ORDER BY id ASC
	`, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query failed events: %w", err)
	}
	defer rows.Close()

	events := []point.FailedEvent{}
	for rows.Next() {
		var (
			ev     = point.FailedEvent{UserID: userID}
			op     string
			millis int64
		)
		if err := rows.Scan(&ev.ID, &op, &ev.Amount, &ev.ErrorMessage, &millis); err != nil {
			return nil, fmt.Errorf("failed to scan failed event: %w", err)
		}
		ev.Operation = point.TxType(op)
		ev.Timestamp = fromMillis(millis)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
