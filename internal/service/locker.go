package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/guttosm/trip-planner/internal/metrics"
)

// lockEntry is a one-slot semaphore shared by every waiter on a key. refs
// counts holders and waiters so idle entries can be dropped.
type lockEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedLocker serializes work per key. Locks on different keys never block
// each other.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewKeyedLocker creates an empty KeyedLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{entries: make(map[string]*lockEntry)}
}

func orderLockKey(id string) string { return "order:" + id }
func truckLockKey(id string) string { return "truck:" + id }

// LockContext acquires every key, in sorted order so that two callers
// locking overlapping sets cannot deadlock. Duplicate and empty keys are
// ignored. It returns the release function, or ctx's error if ctx ends
// first, in which case nothing stays held.
func (l *KeyedLocker) LockContext(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	start := time.Now()

	held := make([]*lockEntry, 0, len(keys))
	heldKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		e := l.ref(key)
		select {
		case e.ch <- struct{}{}:
			held = append(held, e)
			heldKeys = append(heldKeys, key)
		case <-ctx.Done():
			l.unref(key, e)
			l.release(heldKeys, held)
			return nil, ctx.Err()
		}
	}
	metrics.RecordLockWait(time.Since(start))

	var once sync.Once
	return func() {
		once.Do(func() { l.release(heldKeys, held) })
	}, nil
}

func (l *KeyedLocker) release(keys []string, entries []*lockEntry) {
	for i := len(entries) - 1; i >= 0; i-- {
		<-entries[i].ch
		l.unref(keys[i], entries[i])
	}
}

func (l *KeyedLocker) ref(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyedLocker) unref(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports how many keys are held or awaited.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
