package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDebounceCoalescesToLatest(t *testing.T) {
	q := New(Config{Debounce: 30 * time.Millisecond, Concurrency: 1})
	q.Start()

	var mu sync.Mutex
	var got []string

	for i, tag := range []string{"a", "b", "c"} {
		tag := tag
		q.Enqueue(Event{Path: "/x", Priority: Normal}, func(context.Context) {
			mu.Lock()
			got = append(got, tag)
			mu.Unlock()
		})
		if i < 2 {
			time.Sleep(5 * time.Millisecond)
		}
	}

	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "c" {
		t.Fatalf("got %v, want exactly [c]", got)
	}
}

func TestNormalDrainsBeforeLow(t *testing.T) {
	q := New(Config{Debounce: time.Millisecond, Concurrency: 1})
	q.Start()

	var mu sync.Mutex
	var order []string
	record := func(tag string) func(context.Context) {
		return func(context.Context) {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
		}
	}

	q.Enqueue(Event{Path: "/y", Priority: Low}, record("low"))
	q.Enqueue(Event{Path: "/x", Priority: Normal}, record("normal"))

	time.Sleep(10 * time.Millisecond)
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "normal" || order[1] != "low" {
		t.Fatalf("order = %v, want [normal low]", order)
	}
}

func TestDrainIdleIsImmediate(t *testing.T) {
	q := New(Config{Debounce: time.Millisecond, Concurrency: 1})
	q.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("drain on empty queue: %v", err)
	}
}

func TestRateLimitPaces(t *testing.T) {
	q := New(Config{Debounce: time.Millisecond, Concurrency: 4, RatePerMinute: 60})
	q.Start()

	var mu sync.Mutex
	var completions []time.Time
	start := time.Now()

	for i := 0; i < 5; i++ {
		q.Enqueue(Event{Path: pathFor(i), Priority: Normal}, func(context.Context) {
			mu.Lock()
			completions = append(completions, time.Now())
			mu.Unlock()
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(completions) != 5 {
		t.Fatalf("got %d completions, want 5", len(completions))
	}
	if completions[0].Sub(start) > 500*time.Millisecond {
		t.Fatalf("first completion too slow: %v", completions[0].Sub(start))
	}
	if completions[4].Sub(start) < 3*time.Second {
		t.Fatalf("last completion too fast for 1/s pacing: %v", completions[4].Sub(start))
	}
}

func pathFor(i int) string {
	return string(rune('a' + i))
}
