package usecase

import (
	"context"
	"fmt"
	"sync"
)

// ActorLocker provides operation-level mutual exclusion per actor identity.
// It is the serialization boundary the actor managers rely on: at most one
// operation is in flight for a given identity at any time, while operations
// on distinct identities proceed in parallel.
type ActorLocker struct {
	mu    sync.Mutex
	locks map[string]*actorMutex
}

type actorMutex struct {
	mu       sync.Mutex
	refCount int
}

// NewActorLocker creates a new actor locker.
func NewActorLocker() *ActorLocker {
	return &ActorLocker{
		locks: make(map[string]*actorMutex),
	}
}

// Lock acquires the lock for the given identity. It blocks until the lock
// is acquired or the context is cancelled. Returns an unlock function that
// MUST be called when the operation is complete.
func (al *ActorLocker) Lock(ctx context.Context, id string) (unlock func(), err error) {
	// Get or create the per-identity mutex.
	al.mu.Lock()
	am, ok := al.locks[id]
	if !ok {
		am = &actorMutex{}
		al.locks[id] = am
	}
	am.refCount++
	al.mu.Unlock()

	release := func() {
		am.mu.Unlock()
		al.mu.Lock()
		am.refCount--
		if am.refCount == 0 {
			delete(al.locks, id)
		}
		al.mu.Unlock()
	}

	// Try to acquire the identity mutex with context cancellation support.
	acquired := make(chan struct{})
	go func() {
		am.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return release, nil
	case <-ctx.Done():
		// Context cancelled before the lock was acquired. The acquiring
		// goroutine will still take the mutex; release it as soon as it does
		// to avoid a permanently held lock.
		go func() {
			<-acquired
			release()
		}()
		return nil, fmt.Errorf("actor lock %q: %w", id, ctx.Err())
	}
}

// ActiveCount returns the number of identities with active or pending locks.
// Intended for testing.
func (al *ActorLocker) ActiveCount() int {
	al.mu.Lock()
	defer al.mu.Unlock()
	return len(al.locks)
}
