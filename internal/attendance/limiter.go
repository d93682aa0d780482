package attendance

import (
	"context"
	"sync"
)

// keyedLock serializes work per key within the process. Entries are dropped
// once no goroutine holds or waits for them.
type keyedLock struct {
	mu    sync.Mutex
	byKey map[string]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{byKey: make(map[string]*keyedEntry)}
}

// lock waits for key until ctx is done. On error nothing is held.
func (l *keyedLock) lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.byKey[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.byKey[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
	return func() {
		<-e.sem
		l.release(key, e)
	}, nil
}

func (l *keyedLock) release(key string, e *keyedEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.byKey, key)
	}
	l.mu.Unlock()
}
