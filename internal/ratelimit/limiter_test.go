package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAcquireUnderBudgetDoesNotBlock(t *testing.T) {
	l := New(3, time.Minute)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("acquires under budget blocked for %v", elapsed)
	}
}

func TestAcquireEnforcesWindow(t *testing.T) {
	window := 200 * time.Millisecond
	l := New(2, window)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	// Calls 3 and 4 each wait for a slot from the previous pair, so the
	// sequence cannot finish before one full window has passed.
	if elapsed := time.Since(start); elapsed < window {
		t.Fatalf("4 calls with budget 2/%v finished in %v", window, elapsed)
	}
}

func TestAcquireWaitIsMinimal(t *testing.T) {
	window := 300 * time.Millisecond
	l := New(1, window)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)
	if elapsed < window-50*time.Millisecond {
		t.Fatalf("second acquire returned too early: %v", elapsed)
	}
	if elapsed > window+150*time.Millisecond {
		t.Fatalf("second acquire waited far past the window: %v", elapsed)
	}
}

func TestAcquireCanceled(t *testing.T) {
	l := New(1, time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected cancellation error while waiting for a slot")
	}
}

func TestReconfigureAppliesToInFlightWindow(t *testing.T) {
	l := New(1, time.Minute)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	l.Reconfigure(2, time.Minute)

	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquire still blocked after budget was raised")
	}
}

func TestRegistrySharesLimiterPerHost(t *testing.T) {
	r := NewRegistry(5, time.Minute)

	a := r.For("https://www.example.com/page1")
	b := r.For("https://WWW.EXAMPLE.COM/page2")
	if a != b {
		t.Fatal("same host must share one limiter")
	}

	other := r.For("https://other.example.org/")
	if a == other {
		t.Fatal("different hosts must not share a limiter")
	}
}

func TestRegistryWait(t *testing.T) {
	r := NewRegistry(1, time.Minute)
	ctx := context.Background()

	if err := r.Wait(ctx, "https://www.example.com/"); err != nil {
		t.Fatal(err)
	}

	canceled, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := r.Wait(canceled, "https://www.example.com/"); err == nil {
		t.Fatal("expected wait to abort on context timeout")
	}
}
