package database

import (
	"context"
	"sync"
	"time"
)

// lockTable serializes booking writers per event type. Different event
// types never contend; the bounded wait turns a stuck writer into a
// retryable ErrLockBusy instead of a deadlock.
type lockTable struct {
	mu   sync.Mutex
	sems map[int64]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{sems: make(map[int64]chan struct{})}
}

func (l *lockTable) sem(key int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.sems[key] = s
	}
	return s
}

func (l *lockTable) acquire(ctx context.Context, key int64, timeout time.Duration) (release func(), err error) {
	s := l.sem(key)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-timer.C:
		return nil, ErrLockBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
