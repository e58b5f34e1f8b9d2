package core

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoffScheduler doubles Initial per failed attempt up to Max.
type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	delay := cmp.Or(max(s.Initial, 0), time.Minute)
	ceiling := cmp.Or(max(s.Max, 0), time.Hour)
	for range max(attempt, 1) - 1 {
		if delay >= ceiling {
			break
		}
		delay *= 2
	}
	return min(delay, ceiling)
}

// RetryDelay picks the wait before the next attempt. A provider-supplied
// retry-after wins when it is longer than the computed backoff.
func RetryDelay(scheduler BackoffScheduler, attempt int, retryAfter time.Duration) time.Duration {
	delay := scheduler.NextDelay(attempt)
	if retryAfter > delay {
		return retryAfter
	}
	return delay
}

// MemoryInstanceLocker is the single-process InstanceLocker.
type MemoryInstanceLocker struct {
	mu     sync.Mutex
	locks  map[string]memoryLease
	serial uint64
	nowFn  func() time.Time
}

// memoryLease identifies one acquisition so an expired holder cannot release
// a lock that was taken over after its TTL.
type memoryLease struct {
	token uint64
	until time.Time
}

func NewMemoryInstanceLocker() *MemoryInstanceLocker {
	return &MemoryInstanceLocker{
		locks: make(map[string]memoryLease),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryInstanceLocker) Acquire(_ context.Context, providerID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: instance locker is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, fmt.Errorf("core: provider id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if lease, ok := l.locks[providerID]; ok && now.Before(lease.until) {
		return nil, fmt.Errorf("%w: provider %q", ErrSyncLockHeld, providerID)
	}
	l.serial++
	l.locks[providerID] = memoryLease{token: l.serial, until: now.Add(ttl)}
	return &memoryLockHandle{locker: l, providerID: providerID, token: l.serial}, nil
}

type memoryLockHandle struct {
	locker     *MemoryInstanceLocker
	providerID string
	token      uint64
	once       sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		defer h.locker.mu.Unlock()
		if lease, ok := h.locker.locks[h.providerID]; ok && lease.token == h.token {
			delete(h.locker.locks, h.providerID)
		}
	})
	return nil
}

var _ InstanceLocker = (*MemoryInstanceLocker)(nil)
