package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(ctx, "fixed:1:2024-03")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxInside)
	}
	if k.size() != 0 {
		t.Errorf("lock table not cleaned up: %d entries", k.size())
	}
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	k := newKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(ctx, "a"); err == nil {
		t.Fatalf("expected context error while key is held")
	}

	// other keys are independent
	unlockB, err := k.Lock(context.Background(), "b")
	if err != nil {
		t.Fatalf("lock b: %v", err)
	}
	unlockB()
	unlock()
	unlock() // idempotent

	if k.size() != 0 {
		t.Errorf("lock table not cleaned up: %d entries", k.size())
	}
}

func TestAdvisoryKeyStable(t *testing.T) {
	if advisoryKey("interest:1") != advisoryKey("interest:1") {
		t.Fatalf("advisory key not deterministic")
	}
	if advisoryKey("interest:1") == advisoryKey("interest:2") {
		t.Errorf("distinct scopes collide")
	}
}
