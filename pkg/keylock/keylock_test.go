package keylock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	kl := New()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := kl.Lock("user-1")
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("Expected at most 1 holder, observed %d", maxActive)
	}
	if kl.Len() != 0 {
		t.Errorf("Expected entries to be released, got %d", kl.Len())
	}
}

func TestKeyLock_DifferentKeysDoNotBlock(t *testing.T) {
	kl := New()
	unlockA := kl.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := kl.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock on a different key blocked")
	}
}

func TestKeyLock_UnlockIsIdempotent(t *testing.T) {
	kl := New()
	unlock := kl.Lock("a")
	unlock()
	unlock()

	if kl.Len() != 0 {
		t.Errorf("Expected 0 entries, got %d", kl.Len())
	}

	// still usable after a double unlock
	unlock = kl.Lock("a")
	unlock()
}
