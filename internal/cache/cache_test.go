package cache

import (
	"sync/atomic"
	"testing"
	"time"
)

type fakeCleaner struct {
	calls atomic.Int64
}

func (f *fakeCleaner) CleanExpired() int {
	f.calls.Add(1)
	return 0
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	manager := NewManager()
	first := &fakeCleaner{}
	second := &fakeCleaner{}
	manager.Register(first)
	manager.Register(second)

	manager.StartCleanup(10 * time.Millisecond)

	deadline := time.After(2 * time.Second)
	for first.calls.Load() < 2 || second.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("cleanup calls = %d, %d after 2s, want at least 2 each",
				first.calls.Load(), second.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	manager.Stop()

	// No further calls after Stop.
	settled := first.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := first.calls.Load(); got != settled {
		t.Errorf("cleanup calls after Stop = %d, want %d", got, settled)
	}
}

func TestManagerStopBeforeFirstTick(t *testing.T) {
	manager := NewManager()
	manager.StartCleanup(time.Hour)
	manager.Stop() // must not hang waiting for a tick
	manager.Stop() // repeated Stop is a no-op
}
