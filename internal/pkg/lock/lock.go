// internal/pkg/lock/lock.go
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	xerrors "mileage-service/internal/pkg/errors"
)

// Locker grants exclusive access to a set of keys. Keys are acquired in
// sorted order so two callers locking overlapping sets cannot deadlock.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*entry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	held := make([]string, 0, len(keys))

	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, key := range keys {
		if err := l.lock(ctx, key); err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

func (l *LocalLocker) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key, e)
		return fmt.Errorf("%w: %w", xerrors.ErrLockTimeout, ctx.Err())
	}
}

func (l *LocalLocker) unlock(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-e.sem
	l.drop(key, e)
}

func (l *LocalLocker) drop(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
