package award

import (
	"context"
	"sync"
	"time"

	"github.com/ratehive/ratehive/internal/domain"
)

// ─── Per-User Serialization ─────────────────────────────────────────────────
// One award in flight per user, awards for different users fully parallel.
// Entries are reference counted so the map does not grow with the user
// population, only with concurrent contention.

type userLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{} // 1-slot semaphore
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*lockEntry)}
}

// Acquire blocks until the user's lock is held, the context is done, or
// maxWait lapses. The returned release func must be called exactly once.
func (l *userLocks) Acquire(ctx context.Context, userID string, maxWait time.Duration) (release func(), err error) {
	l.mu.Lock()
	e := l.locks[userID]
	if e == nil {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			l.unref(userID, e)
		}, nil
	case <-ctx.Done():
		l.unref(userID, e)
		return nil, ctx.Err()
	case <-timer.C:
		l.unref(userID, e)
		return nil, domain.ErrLockWaitExceeded
	}
}

func (l *userLocks) unref(userID string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, userID)
	}
	l.mu.Unlock()
}
