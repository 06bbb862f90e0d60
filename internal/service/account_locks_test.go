package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountLocks_OppositeOrderDoesNotDeadlock(t *testing.T) {
	locks := newAccountLocks()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(1, 2)
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := locks.Lock(2, 1, 2)
			unlock()
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock ordering deadlocked")
	}
}

func TestAccountLocks_Exclusive(t *testing.T) {
	locks := newAccountLocks()
	unlock := locks.Lock(7)

	acquired := make(chan struct{})
	go func() {
		u := locks.Lock(7)
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder entered while the first held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not released")
	}
	assert.Len(t, locks.locks, 1)
}
