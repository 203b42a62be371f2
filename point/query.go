package point

import "context"

// =============================================================================
// QUERY PATH
// =============================================================================
// Reads go straight to the stores. They are best-effort by default: a read
// racing a mutation sees either the old or the new balance. With
// Policy.ConsistentReads the balance read waits for the user's lock, so it
// never overlaps a mutation for that user.

// GetBalance returns the user's account. Unknown users read as balance 0.
func (e *Engine) GetBalance(ctx context.Context, userID UserID) (Account, error) {
	if e.Policy.ConsistentReads {
		h, err := e.Locks.Acquire(ctx, userID)
		if err != nil {
			return Account{}, err
		}
		defer h.Release()
	}

	acct, ok, err := e.Accounts.Get(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return EmptyAccount(userID), nil
	}
	return acct, nil
}

// GetHistory returns every accepted mutation for the user, oldest first.
// Never nil.
func (e *Engine) GetHistory(ctx context.Context, userID UserID) ([]HistoryEntry, error) {
	entries, err := e.History.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

// GetFailedEvents returns every rejected mutation for the user, oldest first.
func (e *Engine) GetFailedEvents(ctx context.Context, userID UserID) ([]FailedEvent, error) {
	events, err := e.Failures.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []FailedEvent{}
	}
	return events, nil
}
