package counter

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCounter_StartsAtZero(t *testing.T) {
	t.Parallel()

	c := New()
	if got := c.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}
}

func TestCounter_ConcurrentAddDone(t *testing.T) {
	t.Parallel()

	c := New()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		c.Add()
		go func() {
			defer wg.Done()
			c.Done()
		}()
	}
	wg.Wait()

	if got := c.Count(); got != 0 {
		t.Fatalf("Count() = %d after %d add/done pairs, want 0", got, n)
	}
}

func TestCounter_WaitZeroImmediate(t *testing.T) {
	t.Parallel()

	c := New()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.WaitZero(ctx); err != nil {
		t.Fatalf("WaitZero() = %v, want nil for empty counter", err)
	}
}

func TestCounter_WaitZeroBlocksUntilDrained(t *testing.T) {
	t.Parallel()

	c := New()
	c.Add()
	c.Add()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- c.WaitZero(ctx)
	}()

	c.Done()
	select {
	case err := <-done:
		t.Fatalf("WaitZero() returned %v with one connection still live", err)
	case <-time.After(50 * time.Millisecond):
	}

	c.Done()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitZero() = %v, want nil after drain", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitZero() did not return after counter drained")
	}
}

func TestCounter_WaitZeroCancelled(t *testing.T) {
	t.Parallel()

	c := New()
	c.Add()
	defer c.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := c.WaitZero(ctx); err != context.DeadlineExceeded {
		t.Fatalf("WaitZero() = %v, want context.DeadlineExceeded", err)
	}
}
