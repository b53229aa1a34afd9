// Package lock provides in-process implementations of interfaces.Locker.
package lock

import (
	"context"
	"sync"

	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
)

// Local serializes callers per key inside one process. Waiting callers give
// up when their context is cancelled. Keys nobody holds or waits on are
// dropped from the map.
type Local struct {
	mapMu sync.Mutex // protects locks
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{} // buffered(1); a send acquires, a receive releases
	refs int           // holders plus waiters
}

// NewLocal returns an empty keyed lock.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*keyLock)}
}

func (l *Local) ref(key string) *keyLock {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *Local) unref(key string, kl *keyLock) {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// WithLock runs fn while holding the lock for key.
func (l *Local) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	kl := l.ref(key)
	defer l.unref(key, kl)

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-kl.ch }()

	return fn(ctx)
}

// held reports how many keys are currently tracked. Used by tests.
func (l *Local) held() int {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()
	return len(l.locks)
}

// Noop runs fn without any coordination. Useful when the store already
// isolates concurrent units on its own.
type Noop struct{}

// WithLock calls fn directly.
func (Noop) WithLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

var (
	_ interfaces.Locker = (*Local)(nil)
	_ interfaces.Locker = Noop{}
)
