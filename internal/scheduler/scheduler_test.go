package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	job := Job{
		Name:       "tick",
		Retries:    3,
		MinBackoff: time.Millisecond,
		MaxBackoff: 4 * time.Millisecond,
		Task: func(ctx context.Context) error {
			if calls.Add(1) < 3 {
				return errors.New("store unavailable")
			}
			return nil
		},
	}
	if err := New(quietLogger()).RunOnce(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls=%d want 3", got)
	}
}

func TestRunOnceGivesUp(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	job := Job{
		Retries:    2,
		MinBackoff: time.Millisecond,
		Task: func(ctx context.Context) error {
			calls.Add(1)
			return boom
		},
	}
	err := New(quietLogger()).RunOnce(context.Background(), job)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls=%d want 3", got)
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	job := Job{
		Task: func(ctx context.Context) error {
			panic("nil market")
		},
	}
	err := New(quietLogger()).RunOnce(context.Background(), job)
	if err == nil {
		t.Fatalf("expected panic to surface as error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- New(quietLogger()).Run(ctx, Job{
			Every: 2 * time.Millisecond,
			Task: func(ctx context.Context) error {
				if calls.Add(1) == 3 {
					cancel()
				}
				return nil
			},
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
	if calls.Load() < 3 {
		t.Fatalf("calls=%d", calls.Load())
	}
}

func TestRunValidatesJob(t *testing.T) {
	s := New(quietLogger())
	if err := s.Run(context.Background(), Job{Task: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("expected missing interval to fail")
	}
	if err := s.Run(context.Background(), Job{Every: time.Second}); err == nil {
		t.Fatalf("expected missing task to fail")
	}
}
