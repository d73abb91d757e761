// Package lock serializes writers of the same offer or transaction. It keeps
// contending requests from burning their compare-and-swap retries; the
// version check in the store stays the correctness guard.
package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrTimeout = errors.New("lock: timed out waiting for lock")

// Unlock releases a held lock. Extra calls are no-ops.
type Unlock func()

// Local is an in-process lock table keyed by entity id.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch      chan struct{}
	holders int
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.holders++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, errors.Join(ErrTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *Local) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e.holders--
	if e.holders == 0 {
		delete(l.locks, key)
	}
}
