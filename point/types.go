/*
Package point provides the point balance engine.

PURPOSE:
  Keeps a per-user point balance plus an append-only history of every
  accepted charge/use, and an audit log of every rejected one. The
  interesting part is the mutation path: concurrent requests for the same
  user are serialized, requests for different users never wait on each other.

KEY CONCEPTS IN THIS FILE (types.go):
  - UserID: Type-safe user identifier
  - Account: Current balance for a user
  - HistoryEntry: Immutable record of an accepted mutation
  - FailedEvent: Immutable record of a rejected mutation
  - TxType: CHARGE or USE

SIGN CONVENTION:
  HistoryEntry.Amount is signed: +A for CHARGE, -A for USE.
  FailedEvent.Amount is the amount exactly as requested.

SEE ALSO:
  - engine.go: Charge/Use state machine
  - locks.go: Per-user lock registry
  - store.go: Persistence interfaces
*/
package point

import (
	"strconv"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// UserID identifies the owner of a balance.
type UserID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseUserID parses a decimal user id (e.g. from a URL path).
func ParseUserID(s string) (UserID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return UserID(v), nil
}

// =============================================================================
// TRANSACTION TYPE
// =============================================================================

type TxType string

const (
	TxCharge TxType = "CHARGE"
	TxUse    TxType = "USE"
)

func (t TxType) Valid() bool {
	return t == TxCharge || t == TxUse
}

// =============================================================================
// RECORDS
// =============================================================================

// Account is the current balance of a user.
// INVARIANT: Balance >= 0 after every committed mutation.
type Account struct {
	UserID    UserID
	Balance   int64
	UpdatedAt time.Time // zero for a user that was never mutated
}

// EmptyAccount is what an unknown user reads as.
func EmptyAccount(id UserID) Account {
	return Account{UserID: id}
}

// HistoryEntry records one accepted mutation. Never modified after append.
type HistoryEntry struct {
	ID        int64
	UserID    UserID
	Amount    int64 // signed
	Type      TxType
	Timestamp time.Time
}

// FailedEvent records one rejected mutation for audit.
type FailedEvent struct {
	ID           int64
	UserID       UserID
	Operation    TxType
	Amount       int64
	ErrorMessage string
	Timestamp    time.Time
}
