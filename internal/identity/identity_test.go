package identity

import (
	"sync"
	"testing"
)

func TestCounterStartsAtOne(t *testing.T) {
	var c Counter
	if c.Last() != 0 {
		t.Fatalf("fresh counter Last() = %d", c.Last())
	}
	if id := c.Next(); id != 1 {
		t.Fatalf("first id = %d want 1", id)
	}
	if id := c.Next(); id != 2 {
		t.Fatalf("second id = %d want 2", id)
	}
}

func TestCounterConcurrentUnique(t *testing.T) {
	var c Counter
	const workers, per = 8, 500
	var mu sync.Mutex
	seen := make(map[SourceID]struct{}, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]SourceID, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, c.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != workers*per {
		t.Fatalf("expected %d distinct ids, got %d", workers*per, len(seen))
	}
	if c.Last() != SourceID(workers*per) {
		t.Fatalf("Last() = %d want %d", c.Last(), workers*per)
	}
}

func TestProcessCounterIsShared(t *testing.T) {
	a := Process().Next()
	b := Process().Next()
	if b <= a {
		t.Fatalf("process counter not monotonic: %d then %d", a, b)
	}
}
