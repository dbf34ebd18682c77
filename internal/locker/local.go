package locker

import (
	"context"
	"sync"
)

type localLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocalLocker returns an in-process keyed mutex. Unlike the Redis locker it
// blocks until the lock is free instead of failing fast. Suitable only for
// single-instance deployments and tests.
func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]*lockEntry)}
}

func (l *localLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e := l.acquire(key)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		l.put(key, e)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (l *localLocker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	return e
}

// put drops the entry once nobody holds or waits on it, keeping the map from
// growing with one entry per key ever seen.
func (l *localLocker) put(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
