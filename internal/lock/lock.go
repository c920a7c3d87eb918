// Package lock provides the single-writer guard around history merges.
package lock

import (
	"context"
)

// Release gives the lock back.
type Release func(ctx context.Context) error

// Locker hands out one holder at a time. Acquire blocks until the lock is
// held or ctx is done.
type Locker interface {
	Acquire(ctx context.Context) (Release, error)
}

// Local is an in-process Locker.
type Local struct {
	ch chan struct{}
}

// NewLocal returns an unlocked Local.
func NewLocal() *Local {
	return &Local{ch: make(chan struct{}, 1)}
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context) (Release, error) {
	select {
	case l.ch <- struct{}{}:
		return func(context.Context) error {
			<-l.ch
			return nil
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
