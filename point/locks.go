/*
locks.go - Per-user lock registry

PURPOSE:
  Gives every user id its own exclusive lock, created the first time the id
  is seen and reused afterwards. At most one mutation per user is in flight;
  different users never contend.

POLICIES:
  LockBlocking: Acquire waits until the lock is free or ctx is done.
  LockTry:      TryAcquire fails immediately with ErrBusy if held.
  A deployment picks one and the engine applies it to charge and use alike.

IMPLEMENTATION:
  Each lock is a 1-slot channel. Sending takes the lock, receiving releases
  it. A channel (instead of sync.Mutex) lets a blocked Acquire give up when
  its context is cancelled.

  The registry is a sync.Map with LoadOrStore, so two goroutines that race on
  the first request for a user still end up sharing one lock.
*/
package point

import (
	"context"
	"fmt"
	"sync"
)

// LockPolicy selects how the engine acquires the per-user lock.
type LockPolicy int

const (
	LockBlocking LockPolicy = iota
	LockTry
)

func (p LockPolicy) String() string {
	switch p {
	case LockBlocking:
		return "blocking"
	case LockTry:
		return "try"
	default:
		return fmt.Sprintf("LockPolicy(%d)", int(p))
	}
}

// ParseLockPolicy accepts "blocking" or "try".
func ParseLockPolicy(s string) (LockPolicy, error) {
	switch s {
	case "blocking", "":
		return LockBlocking, nil
	case "try":
		return LockTry, nil
	default:
		return 0, fmt.Errorf("unknown lock policy %q (want blocking or try)", s)
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

type userLock chan struct{}

// LockRegistry maps user ids to exclusive locks.
type LockRegistry struct {
	locks sync.Map // UserID -> userLock
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{}
}

func (r *LockRegistry) lockFor(userID UserID) userLock {
	if l, ok := r.locks.Load(userID); ok {
		return l.(userLock)
	}
	l, _ := r.locks.LoadOrStore(userID, make(userLock, 1))
	return l.(userLock)
}

// Acquire blocks until the user's lock is held or ctx is done.
// On cancellation nothing is held and ctx.Err() is returned (wrapped).
func (r *LockRegistry) Acquire(ctx context.Context, userID UserID) (*LockHandle, error) {
	for {
		// Prefer a done context over a free lock.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("acquire lock for user %d: %w", userID, err)
		}

		l := r.lockFor(userID)
		select {
		case l <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock for user %d: %w", userID, ctx.Err())
		}
		if r.current(userID, l) {
			return &LockHandle{userID: userID, lock: l}, nil
		}
		<-l // pruned while we waited
	}
}

// TryAcquire takes the user's lock if it is free and fails with ErrBusy
// otherwise. It never blocks.
func (r *LockRegistry) TryAcquire(userID UserID) (*LockHandle, error) {
	for {
		l := r.lockFor(userID)
		select {
		case l <- struct{}{}:
		default:
			return nil, &BusyError{UserID: userID}
		}
		if r.current(userID, l) {
			return &LockHandle{userID: userID, lock: l}, nil
		}
		<-l
	}
}

// current reports whether l is still the registered lock for userID.
func (r *LockRegistry) current(userID UserID, l userLock) bool {
	v, ok := r.locks.Load(userID)
	return ok && v.(userLock) == l
}

// AcquireWith acquires according to policy.
func (r *LockRegistry) AcquireWith(ctx context.Context, policy LockPolicy, userID UserID) (*LockHandle, error) {
	if policy == LockTry {
		return r.TryAcquire(userID)
	}
	return r.Acquire(ctx, userID)
}

// Len returns how many distinct users currently have a lock allocated.
func (r *LockRegistry) Len() int {
	n := 0
	r.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Prune drops the lock for userID if nobody holds it. Returns true if it was
// removed. Only needed to bound memory for very large user populations.
func (r *LockRegistry) Prune(userID UserID) bool {
	v, ok := r.locks.Load(userID)
	if !ok {
		return false
	}
	l := v.(userLock)
	select {
	case l <- struct{}{}:
	default:
		return false
	}
	// Waiters parked on the old lock notice it is no longer registered and
	// retry against the fresh one.
	r.locks.CompareAndDelete(userID, l)
	<-l
	return true
}

// PruneIdle prunes every lock nobody holds right now and returns how many
// were removed. Held locks are skipped, never waited on.
func (r *LockRegistry) PruneIdle() int {
	var ids []UserID
	r.locks.Range(func(k, _ any) bool {
		ids = append(ids, k.(UserID))
		return true
	})

	pruned := 0
	for _, id := range ids {
		if r.Prune(id) {
			pruned++
		}
	}
	return pruned
}

// =============================================================================
// HANDLE
// =============================================================================

// LockHandle is a held user lock. Release is idempotent.
type LockHandle struct {
	userID UserID
	lock   userLock
	once   sync.Once
}

func (h *LockHandle) UserID() UserID { return h.userID }

func (h *LockHandle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() { <-h.lock })
}
