package storage

import (
	"context"
	"errors"
	"time"

	"wealthwatch/internal/core"
)

var errLockTimeout = errors.New("timed out waiting for the write lock")

// WriteLock admits one writer at a time. A writer that cannot get the lock
// within the timeout fails with a ConcurrencyError.
type WriteLock struct {
	sem     chan struct{}
	timeout time.Duration
}

func NewWriteLock(timeout time.Duration) *WriteLock {
	return &WriteLock{sem: make(chan struct{}, 1), timeout: timeout}
}

// Acquire blocks until the lock is free, ctx is done or the timeout passes.
// The returned func releases the lock.
func (l *WriteLock) Acquire(ctx context.Context, op string) (func(), error) {
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, &core.ConcurrencyError{Op: op, Err: errLockTimeout}
	}
}
