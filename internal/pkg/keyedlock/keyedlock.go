/*
Package keyedlock serializes work per key, such as per chatroom.

Local locks one process. Redis extends the same guarantee to every server instance sharing
a Redis deployment, for mutations whose follow-up publish must not be reordered.
*/
package keyedlock

import (
	"context"
	"sync"
)

// Locker hands out exclusive locks by key. Lock blocks until the key is held or ctx is
// done, and returns the function releasing it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Local is an in-process Locker. A key's lock is forgotten once nobody holds or waits for it.
type Local struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	held chan struct{}
	refs int
}

var _ Locker = (*Local)(nil)

// NewLocal returns an empty Local.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*refLock)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &refLock{held: make(chan struct{}, 1)}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	select {
	case m.held <- struct{}{}:
	case <-ctx.Done():
		l.release(key, m)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-m.held
			l.release(key, m)
		})
	}, nil
}

func (l *Local) release(key string, m *refLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}

// Size returns the number of keys currently held or waited for.
func (l *Local) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
