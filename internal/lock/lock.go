// Package lock provides keyed mutual exclusion. The ledger serializes balance
// and vip_xp mutations per account with it, and the message pipeline uses a
// second instance to keep persist+broadcast ordered per room.
package lock

import (
	"context"
	"sync"
	"time"
)

// keyMutex is a one-slot semaphore so acquisition can be abandoned on
// context cancellation without leaving a goroutine holding it.
type keyMutex struct {
	sem     chan struct{}
	waiters int
}

// KeyedLock hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits for them.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[int]*keyMutex
}

// NewKeyedLock creates an empty KeyedLock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[int]*keyMutex)}
}

func (kl *KeyedLock) acquireRef(key int) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{sem: make(chan struct{}, 1)}
		kl.locks[key] = m
	}
	m.waiters++
	return m
}

func (kl *KeyedLock) releaseRef(key int, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m.waiters--
	if m.waiters == 0 {
		delete(kl.locks, key)
	}
}

// Unlock releases the key. Unlocking a key that is not held is a no-op.
func (kl *KeyedLock) Unlock(key int) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-m.sem:
		kl.releaseRef(key, m)
	default:
	}
}

// LockContext acquires the key or gives up when ctx is done or timeout
// elapses. A zero timeout waits for ctx only.
func (kl *KeyedLock) LockContext(ctx context.Context, key int, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m := kl.acquireRef(key)
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		kl.releaseRef(key, m)
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLockContext executes fn while holding key, giving up on acquisition
// after timeout.
func (kl *KeyedLock) WithLockContext(ctx context.Context, key int, timeout time.Duration, fn func() error) error {
	if err := kl.LockContext(ctx, key, timeout); err != nil {
		return err
	}
	defer kl.Unlock(key)
	return fn()
}

func (kl *KeyedLock) size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
