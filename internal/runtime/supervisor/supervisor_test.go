package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func wait(t *testing.T, s *Supervisor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestGoCleanExit(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	var ran atomic.Bool
	s.Go("ok", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	wait(t, s)

	if !ran.Load() {
		t.Fatal("goroutine did not run")
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
	if s.Active() != 0 {
		t.Fatalf("Active = %d", s.Active())
	}
}

func TestGoRecordsFirstError(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	s.Go("boom", func(ctx context.Context) error {
		return errors.New("db down")
	})
	wait(t, s)

	err := s.Err()
	if err == nil || !strings.Contains(err.Error(), "boom") || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("Err = %v", err)
	}
	if s.Context().Err() != nil {
		t.Fatal("error should not cancel context without WithCancelOnError")
	}
}

func TestCancelOnError(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithCancelOnError(true))
	s.Go("fail", func(ctx context.Context) error {
		return errors.New("fatal")
	})
	s.Go("sibling", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	wait(t, s)

	if s.Context().Err() == nil {
		t.Fatal("first error should cancel the shared context")
	}
	// Sibling's context.Canceled must not overwrite the first error.
	if err := s.Err(); err == nil || !strings.Contains(err.Error(), "fatal") {
		t.Fatalf("Err = %v", err)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	s.Go("panics", func(ctx context.Context) error {
		panic("oops")
	})
	wait(t, s)

	if err := s.Err(); err == nil || !strings.Contains(err.Error(), "oops") {
		t.Fatalf("Err = %v", err)
	}
}

func TestGoRestartRetriesThenGivesUp(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	var runs atomic.Int64
	s.GoRestart("flaky", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("again")
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond), WithMaxRestarts(3))
	wait(t, s)

	// Initial run + 3 restarts.
	if got := runs.Load(); got != 4 {
		t.Fatalf("runs = %d, want 4", got)
	}
	if err := s.Err(); err == nil || !strings.Contains(err.Error(), "giving up") {
		t.Fatalf("Err = %v", err)
	}
}

func TestGoRestartStopsOnCleanExit(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	var runs atomic.Int64
	s.GoRestart("recovers", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("warming up")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond))
	wait(t, s)

	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
}

func TestGoRestartStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	var runs atomic.Int64
	s.GoRestart("loop", func(ctx context.Context) error {
		runs.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Minute):
			return nil
		}
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond))

	time.Sleep(20 * time.Millisecond)
	s.Cancel()
	wait(t, s)

	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("cancellation should not record an error, got %v", err)
	}
}

func TestWaitTimeout(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	release := make(chan struct{})
	s.Go0("slow", func(ctx context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}

	close(release)
	wait(t, s)
}
