package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestKeyedLock_SerializesAndCleansUp(t *testing.T) {
	l := newKeyedLock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.lock(context.Background(), "batch-1")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("%d goroutines held the same key", maxSeen)
	}
	if len(l.byKey) != 0 {
		t.Fatalf("entries leaked: %d", len(l.byKey))
	}

	// distinct keys do not block each other
	a, _ := l.lock(context.Background(), "a")
	b, _ := l.lock(context.Background(), "b")
	b()
	a()
}

func TestKeyedLock_WaitHonorsContext(t *testing.T) {
	l := newKeyedLock()
	held, err := l.lock(context.Background(), "batch-1")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.lock(ctx, "batch-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}

	held()
	if len(l.byKey) != 0 {
		t.Fatalf("entries leaked: %d", len(l.byKey))
	}
	again, err := l.lock(context.Background(), "batch-1")
	if err != nil {
		t.Fatal(err)
	}
	again()
}
