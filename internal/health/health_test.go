package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffMonotonicUntilReset(t *testing.T) {
	s := New(Config{BaseDelay: 10 * time.Millisecond, MaxBackoff: 200 * time.Millisecond})

	want := []int64{10, 20, 40, 80, 160, 200, 200}
	for i, w := range want {
		s.RecordFailure(errors.New("boom"))
		if got := s.CurrentBackoffMs(); got != w {
			t.Fatalf("failure %d: backoff = %d, want %d", i+1, got, w)
		}
	}

	s.RecordSuccess()
	if got := s.CurrentBackoffMs(); got != 0 {
		t.Fatalf("after reset: backoff = %d, want 0", got)
	}
}

func TestRecordFailureFatalCallback(t *testing.T) {
	var fatalErr error
	s := New(Config{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		OnFatal:    func(err error) { fatalErr = err },
	})

	if !s.RecordFailure(errors.New("1")) {
		t.Fatal("expected continue on first failure")
	}
	if !s.RecordFailure(errors.New("2")) {
		t.Fatal("expected continue on second failure")
	}
	boom := errors.New("3")
	if s.RecordFailure(boom) {
		t.Fatal("expected stop at threshold")
	}
	if fatalErr != boom {
		t.Fatalf("fatal callback got %v, want %v", fatalErr, boom)
	}
}

func TestBackoffHonorsCancellation(t *testing.T) {
	s := New(Config{BaseDelay: time.Hour})
	s.RecordFailure(errors.New("boom"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Backoff(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
}
