//go:build unit

package usecase_test

import (
	"sync"
	"testing"
	"time"

	"bloodbank-ops/internal/usecase"

	"github.com/stretchr/testify/assert"
)

func TestLocks_HospitalSerializes(t *testing.T) {
	locks := usecase.NewLocks()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Hospital("hospital-1")
			defer unlock()
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLocks_HospitalsAreIndependent(t *testing.T) {
	locks := usecase.NewLocks()
	unlock := locks.Hospital("hospital-1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		locks.Hospital("hospital-2")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hospital-2 blocked behind hospital-1")
	}
}

func TestLocks_OverlappingLocations(t *testing.T) {
	locks := usecase.NewLocks()
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				locks.Locations("fridge-1", "fridge-2")()
			}()
			go func() {
				defer wg.Done()
				locks.Locations("fridge-2", "fridge-1", "fridge-2", "")()
			}()
		}
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("overlapping location locks deadlocked")
	}
}
