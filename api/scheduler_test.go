package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/point-engine/point"
)

func TestLockSweeper_RunNowPrunesIdleLocks(t *testing.T) {
	// GIVEN: Three users with locks, one of them held
	locks := point.NewLockRegistry()
	for _, id := range []point.UserID{1, 2, 3} {
		h, err := locks.TryAcquire(id)
		require.NoError(t, err)
		h.Release()
	}
	held, err := locks.TryAcquire(2)
	require.NoError(t, err)

	// WHEN: Sweeping
	s := NewLockSweeper(locks)
	pruned := s.RunNow()

	// THEN: Only the idle locks are gone
	assert.Equal(t, 2, pruned)
	assert.Equal(t, 1, locks.Len())
	_, err = locks.TryAcquire(2)
	assert.ErrorIs(t, err, point.ErrBusy, "held lock must survive a sweep")

	at, n := s.LastSweep()
	assert.False(t, at.IsZero())
	assert.Equal(t, 2, n)

	held.Release()
}

func TestLockSweeper_StartStop(t *testing.T) {
	locks := point.NewLockRegistry()
	h, err := locks.TryAcquire(1)
	require.NoError(t, err)
	h.Release()

	s := NewLockSweeper(locks)
	s.Interval = 5 * time.Millisecond
	s.Start()
	s.Start()

	assert.Eventually(t, func() bool { return locks.Len() == 0 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestLockSweeper_DisabledDoesNotRun(t *testing.T) {
	locks := point.NewLockRegistry()
	h, err := locks.TryAcquire(1)
	require.NoError(t, err)
	h.Release()

	s := NewLockSweeper(locks)
	s.Interval = 0
	s.Start()
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, locks.Len())
}
