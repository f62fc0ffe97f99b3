package sqlite

import (
	"context"
	"sync"
	"testing"
)

func TestIncrementIfBelowAdmitsUpToMax(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		admitted, err := store.IncrementIfBelow(ctx, "player-1", "2025-06-01", 3)
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if !admitted {
			t.Fatalf("increment %d denied, want admitted", i)
		}
	}

	admitted, err := store.IncrementIfBelow(ctx, "player-1", "2025-06-01", 3)
	if err != nil {
		t.Fatalf("increment past max: %v", err)
	}
	if admitted {
		t.Fatal("expected denial past max")
	}

	count, err := store.QuotaCount(ctx, "player-1", "2025-06-01")
	if err != nil {
		t.Fatalf("quota count: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestIncrementIfBelowIsolatesPeriods(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if admitted, err := store.IncrementIfBelow(ctx, "player-1", "2025-06-01", 1); err != nil || !admitted {
		t.Fatalf("first period: admitted=%v err=%v", admitted, err)
	}
	if admitted, err := store.IncrementIfBelow(ctx, "player-1", "2025-06-01", 1); err != nil || admitted {
		t.Fatalf("first period exhausted: admitted=%v err=%v", admitted, err)
	}
	// A new period key starts a fresh count.
	if admitted, err := store.IncrementIfBelow(ctx, "player-1", "2025-06-02", 1); err != nil || !admitted {
		t.Fatalf("second period: admitted=%v err=%v", admitted, err)
	}
}

func TestIncrementIfBelowZeroMaxDenies(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	admitted, err := store.IncrementIfBelow(ctx, "player-1", "2025-06-01", 0)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if admitted {
		t.Fatal("expected denial with max 0")
	}

	count, err := store.QuotaCount(ctx, "player-1", "2025-06-01")
	if err != nil {
		t.Fatalf("quota count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0 (no row written)", count)
	}
}

func TestIncrementIfBelowConcurrent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	const max = 5
	const callers = 12

	var wg sync.WaitGroup
	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted, err := store.IncrementIfBelow(ctx, "player-1", "2025-06-01", max)
			if err != nil {
				t.Errorf("concurrent increment: %v", err)
				return
			}
			results <- admitted
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	if admitted != max {
		t.Fatalf("admitted = %d, want exactly %d", admitted, max)
	}

	count, err := store.QuotaCount(ctx, "player-1", "2025-06-01")
	if err != nil {
		t.Fatalf("quota count: %v", err)
	}
	if count != max {
		t.Fatalf("count = %d, want %d", count, max)
	}
}

func TestQuotaCountMissingRow(t *testing.T) {
	store := openTestStore(t)
	count, err := store.QuotaCount(context.Background(), "player-1", "2025-06-01")
	if err != nil {
		t.Fatalf("quota count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}
