// Package lock provides per-chat locking so that only one phase transition
// of a game runs at a time, whether it comes from an inbound update or a timer.
package lock

import (
	"context"
	"sync"
	"time"
)

// chatMutex wraps a mutex with a count of holders and waiters.
type chatMutex struct {
	mu    sync.Mutex
	users int
}

// ChatLock hands out one mutex per chat id. Mutexes are dropped once nobody
// holds or waits for them, so idle chats do not accumulate.
type ChatLock struct {
	mu    sync.Mutex
	locks map[int64]*chatMutex
	pool  sync.Pool
}

// NewChatLock creates a new ChatLock instance.
func NewChatLock() *ChatLock {
	return &ChatLock{
		locks: make(map[int64]*chatMutex),
		pool: sync.Pool{
			New: func() any {
				return &chatMutex{}
			},
		},
	}
}

// acquire returns the mutex for the chat and registers the caller as a user of it.
func (l *ChatLock) acquire(chatID int64) *chatMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[chatID]
	if !ok {
		m = l.pool.Get().(*chatMutex)
		m.users = 0
		l.locks[chatID] = m
	}
	m.users++
	return m
}

// release unregisters a user and recycles the mutex when it was the last one.
func (l *ChatLock) release(chatID int64, m *chatMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m.users--
	if m.users == 0 {
		delete(l.locks, chatID)
		l.pool.Put(m)
	}
}

// Lock acquires the lock for a chat.
func (l *ChatLock) Lock(chatID int64) {
	m := l.acquire(chatID)
	m.mu.Lock()
}

// Unlock releases the lock for a chat.
func (l *ChatLock) Unlock(chatID int64) {
	l.mu.Lock()
	m, ok := l.locks[chatID]
	l.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	l.release(chatID, m)
}

// TryLock attempts to acquire the lock without blocking.
func (l *ChatLock) TryLock(chatID int64) bool {
	m := l.acquire(chatID)
	if m.mu.TryLock() {
		return true
	}
	l.release(chatID, m)
	return false
}

// LockWithTimeout attempts to acquire the lock until the timeout or ctx expires.
func (l *ChatLock) LockWithTimeout(ctx context.Context, chatID int64, timeout time.Duration) bool {
	m := l.acquire(chatID)

	done := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return true
	case <-timeoutCtx.Done():
		// The waiting goroutine still gets the mutex eventually; hand it back.
		go func() {
			<-done
			m.mu.Unlock()
			l.release(chatID, m)
		}()
		return false
	}
}

// WithLock executes fn while holding the chat's lock.
func (l *ChatLock) WithLock(chatID int64, fn func() error) error {
	l.Lock(chatID)
	defer l.Unlock(chatID)
	return fn()
}

// WithLockContext executes fn while holding the chat's lock, giving up after timeout.
func (l *ChatLock) WithLockContext(ctx context.Context, chatID int64, timeout time.Duration, fn func() error) error {
	if !l.LockWithTimeout(ctx, chatID, timeout) {
		return ErrLockTimeout
	}
	defer l.Unlock(chatID)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

// IsLocked reports whether the chat's lock is currently held or awaited.
// This is a point-in-time check.
func (l *ChatLock) IsLocked(chatID int64) bool {
	l.mu.Lock()
	_, ok := l.locks[chatID]
	l.mu.Unlock()
	return ok
}

// Size returns the number of chats with a live mutex.
func (l *ChatLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
