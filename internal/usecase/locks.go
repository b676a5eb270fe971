package usecase

import (
	"sort"
	"sync"
)

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*refMutex{}}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// LockAll takes the keys in sorted order so two callers locking overlapping
// sets cannot deadlock.
func (k *keyedMutex) LockAll(keys ...string) func() {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	unlocks := make([]func(), 0, len(sorted))
	for _, key := range sorted {
		unlocks = append(unlocks, k.Lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Locks orders every inventory mutation: the hospital first, then the
// storage locations it touches, then the store transaction. Whoever holds a hospital lock also
// invalidates that hospital's cache entries before releasing it.
type Locks struct {
	hospitals *keyedMutex
	locations *keyedMutex
}

func NewLocks() *Locks {
	return &Locks{
		hospitals: newKeyedMutex(),
		locations: newKeyedMutex(),
	}
}

func (l *Locks) Hospital(id string) func() {
	return l.hospitals.Lock(id)
}

func (l *Locks) Locations(ids ...string) func() {
	return l.locations.LockAll(ids...)
}
