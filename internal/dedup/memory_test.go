package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryStoreFirstCallOnlyProcesses(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	seen, err := store.Seen(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatal("first call with a novel event id must return false")
	}

	seen, err = store.Seen(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if !seen {
		t.Fatal("repeat call within TTL must return true")
	}

	seen, err = store.Seen(ctx, "evt-2")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatal("different event id must not be reported as seen")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore(300 * time.Second)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if seen, _ := store.Seen(ctx, "evt-1"); seen {
		t.Fatal("novel id reported as seen")
	}

	now = now.Add(299 * time.Second)
	if seen, _ := store.Seen(ctx, "evt-1"); !seen {
		t.Fatal("id inside TTL window must be seen")
	}

	now = now.Add(301 * time.Second)
	if seen, _ := store.Seen(ctx, "evt-1"); seen {
		t.Fatal("id past TTL must be treated as novel again")
	}
}

func TestMemoryStoreConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	const callers = 64
	var winners atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			seen, err := store.Seen(ctx, "same-event")
			if err != nil {
				t.Errorf("Seen: %v", err)
				return
			}
			if !seen {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}
