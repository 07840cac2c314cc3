package tick

import (
	"context"
	"log/slog"
	"time"

	"quickbuck/internal/store"
)

// LockStore persists the singleton tick lock row.
type LockStore interface {
	GetTickLock(ctx context.Context) (store.TickLock, bool, error)
	CreateTickLock(ctx context.Context, l store.TickLock) error
	UpdateTickLock(ctx context.Context, l store.TickLock) error
}

// LockManager mediates the single "tick in progress" mutex. TryAcquire and
// Release are the only code paths that mutate the lock row.
//
// Staleness reclaim is a heuristic deadlock-breaker, not a correctness
// guarantee: two callers racing the staleness check could both pass it. In
// practice the scheduler invokes at most one concurrent tick, so the window
// only matters after a crashed run left the lock held.
type LockManager struct {
	store      LockStore
	staleAfter time.Duration
	log        *slog.Logger
	now        func() time.Time
}

const DefaultLockStaleAfter = 10 * time.Minute

func NewLockManager(s LockStore, staleAfter time.Duration, logger *slog.Logger) *LockManager {
	if staleAfter <= 0 {
		staleAfter = DefaultLockStaleAfter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LockManager{store: s, staleAfter: staleAfter, log: logger, now: time.Now}
}

// TryAcquire claims the lock for source. A false return means another tick
// holds a fresh lock; the caller should skip this invocation, not retry.
func (m *LockManager) TryAcquire(ctx context.Context, source string) (bool, error) {
	lock, found, err := m.store.GetTickLock(ctx)
	if err != nil {
		return false, err
	}
	now := m.now()

	if !found {
		l := store.TickLock{
			LockID:   store.SingletonLockID,
			IsLocked: true,
			LockedAt: &now,
			LockedBy: &source,
		}
		if err := m.store.CreateTickLock(ctx, l); err != nil {
			return false, err
		}
		return true, nil
	}

	if lock.IsLocked {
		if lock.LockedAt != nil && now.Sub(*lock.LockedAt) <= m.staleAfter {
			return false, nil
		}
		// Held past the staleness window, or held with no timestamp at all
		// (a malformed row would otherwise block ticks forever): a prior run
		// crashed without releasing. Reclaim by overwriting owner and
		// timestamp.
		heldBy := ""
		if lock.LockedBy != nil {
			heldBy = *lock.LockedBy
		}
		heldFor := "unknown"
		if lock.LockedAt != nil {
			heldFor = now.Sub(*lock.LockedAt).String()
		}
		m.log.Warn("reclaiming stale tick lock",
			"held_by", heldBy,
			"held_for", heldFor,
			"new_owner", source)
	}

	lock.IsLocked = true
	lock.LockedAt = &now
	lock.LockedBy = &source
	if err := m.store.UpdateTickLock(ctx, lock); err != nil {
		return false, err
	}
	return true, nil
}

// Release clears the lock regardless of which caller holds it.
func (m *LockManager) Release(ctx context.Context) error {
	lock, found, err := m.store.GetTickLock(ctx)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	lock.IsLocked = false
	lock.LockedAt = nil
	lock.LockedBy = nil
	return m.store.UpdateTickLock(ctx, lock)
}
