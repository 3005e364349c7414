package lock

import (
	"context"
	"sync"
)

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedLocker is an in-process Locker. Entries are reference counted and
// dropped once nobody holds or waits on them, so the map only grows with
// the number of keys currently in contention.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

// NewKeyedLocker creates an empty in-process locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{entries: make(map[string]*keyedEntry)}
}

// Lock acquires every key in sorted order. If ctx ends while waiting, the
// keys acquired so far are released and ctx.Err() is returned.
func (l *KeyedLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	held := make([]string, 0, len(keys))

	for _, key := range keys {
		e := l.ref(key)
		select {
		case e.sem <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.unref(key)
			l.release(held)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *KeyedLocker) ref(key string) *keyedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyedLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *KeyedLocker) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.entries[keys[i]]
		l.mu.Unlock()
		<-e.sem
		l.unref(keys[i])
	}
}

// size reports the number of live entries. Used by tests.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
