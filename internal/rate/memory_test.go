package rate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryLimiter_AllowsUpToMax(t *testing.T) {
	t.Parallel()

	l := NewMemoryLimiter("test:", 3, time.Hour)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "1.2.3.4|/v1/token")
		if err != nil {
			t.Fatalf("Allow #%d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("Allow #%d: denied, want allowed", i)
		}
		if res.CurrentHits != int64(i) {
			t.Errorf("Allow #%d: CurrentHits = %d, want %d", i, res.CurrentHits, i)
		}
		if res.Remaining != int64(3-i) {
			t.Errorf("Allow #%d: Remaining = %d, want %d", i, res.Remaining, 3-i)
		}
	}

	res, err := l.Allow(ctx, "1.2.3.4|/v1/token")
	if err != nil {
		t.Fatalf("Allow #4: %v", err)
	}
	if res.Allowed {
		t.Fatal("Allow #4: allowed, want denied")
	}
	if res.Remaining != 0 {
		t.Errorf("Allow #4: Remaining = %d, want 0", res.Remaining)
	}
	if res.RetryAfter <= 0 {
		t.Errorf("Allow #4: RetryAfter = %v, want > 0", res.RetryAfter)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	l := NewMemoryLimiter("test:", 1, time.Hour)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "1.1.1.1|/v1/token"); !res.Allowed {
		t.Fatal("first key denied on first hit")
	}
	if res, _ := l.Allow(ctx, "1.1.1.1|/v1/token"); res.Allowed {
		t.Fatal("first key allowed beyond max")
	}
	if res, _ := l.Allow(ctx, "2.2.2.2|/v1/token"); !res.Allowed {
		t.Fatal("second key should not share the first key's window")
	}
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	t.Parallel()

	window := 150 * time.Millisecond
	l := NewMemoryLimiter("test:", 1, window)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("first hit denied")
	}
	if res, _ := l.Allow(ctx, "k"); res.Allowed {
		t.Fatal("second hit in same window allowed")
	}

	// esperar a que arranque la ventana siguiente
	time.Sleep(window + 50*time.Millisecond)

	if res, _ := l.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("hit in new window denied")
	}
}

func TestMemoryLimiter_ConcurrentCounts(t *testing.T) {
	t.Parallel()

	const workers = 20
	l := NewMemoryLimiter("test:", 10, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(ctx, "shared")
			if err != nil {
				t.Errorf("Allow: %v", err)
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("allowed %d of %d, want exactly 10", allowed, workers)
	}
}

func TestMemoryLimiter_CanceledContext(t *testing.T) {
	t.Parallel()

	l := NewMemoryLimiter("test:", 1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.Allow(ctx, "k"); err == nil {
		t.Fatal("Allow with canceled context: want error")
	}
}
