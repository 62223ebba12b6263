package award

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ratehive/ratehive/internal/domain"
)

func TestUserLocks_MutualExclusion(t *testing.T) {
	locks := newUserLocks()
	ctx := context.Background()

	var holders int
	var maxHolders int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(ctx, "u1", time.Second)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			holders++
			if holders > maxHolders {
				maxHolders = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxHolders != 1 {
		t.Errorf("observed %d concurrent holders, want 1", maxHolders)
	}
	if len(locks.locks) != 0 {
		t.Errorf("lock map not drained: %d entries", len(locks.locks))
	}
}

func TestUserLocks_DifferentUsersIndependent(t *testing.T) {
	locks := newUserLocks()
	ctx := context.Background()

	releaseA, err := locks.Acquire(ctx, "a", time.Second)
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	// Holding a's lock must not delay b.
	releaseB, err := locks.Acquire(ctx, "b", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire b while a held: %v", err)
	}
	releaseB()
}

func TestUserLocks_BoundedWait(t *testing.T) {
	locks := newUserLocks()
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "u1", time.Second)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer release()

	_, err = locks.Acquire(ctx, "u1", 10*time.Millisecond)
	if !errors.Is(err, domain.ErrLockWaitExceeded) {
		t.Fatalf("expected ErrLockWaitExceeded, got %v", err)
	}
	if !domain.Retryable(err) {
		t.Error("lock wait timeout must be retryable")
	}
}

func TestUserLocks_ContextCancelled(t *testing.T) {
	locks := newUserLocks()

	release, err := locks.Acquire(context.Background(), "u1", time.Second)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locks.Acquire(ctx, "u1", time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
