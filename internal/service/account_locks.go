package service

import (
	"slices"
	"sync"
)

// accountLocks serializes mutations per account. Locks for several accounts
// are always taken in ascending id order.
type accountLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[uint]*sync.Mutex)}
}

func (l *accountLocks) get(id uint) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// Lock acquires every distinct id and returns the matching unlock func.
func (l *accountLocks) Lock(ids ...uint) func() {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, id := range ordered {
		m := l.get(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
