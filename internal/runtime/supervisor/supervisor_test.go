package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoErrorCancelsContext(t *testing.T) {
	s := NewSupervisor(context.Background())
	boom := errors.New("boom")
	s.Go("fail", func(context.Context) error { return boom })

	select {
	case <-s.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after task error")
	}
	if err := s.Err(); !errors.Is(err, boom) {
		t.Fatalf("Err = %v", err)
	}
}

func TestGoErrorWithoutCancel(t *testing.T) {
	s := NewSupervisor(context.Background(), WithCancelOnError(false))
	s.Go("fail", func(context.Context) error { return errors.New("boom") })

	wctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Wait(wctx); err == nil {
		t.Fatal("Wait returned nil after task error")
	}
	if s.Context().Err() != nil {
		t.Fatal("context cancelled despite WithCancelOnError(false)")
	}
}

func TestGoPanicRecovered(t *testing.T) {
	s := NewSupervisor(context.Background())
	s.Go0("panics", func(context.Context) { panic("kaboom") })

	select {
	case <-s.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("panic did not cancel supervisor")
	}
	if err := s.Err(); err == nil {
		t.Fatal("panic not recorded as error")
	}
}

func TestGoRestartRetriesUntilCancel(t *testing.T) {
	s := NewSupervisor(context.Background(), WithCancelOnError(false))
	var runs atomic.Int32
	s.GoRestart("flaky", func(context.Context) error {
		runs.Add(1)
		return errors.New("transient")
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	time.Sleep(100 * time.Millisecond)
	s.Cancel()

	wctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.Wait(wctx)

	if runs.Load() < 3 {
		t.Fatalf("runs = %d, want restarts", runs.Load())
	}
}

func TestGoRestartStopsOnCleanExit(t *testing.T) {
	s := NewSupervisor(context.Background())
	var runs atomic.Int32
	s.GoRestart("once", func(context.Context) error {
		runs.Add(1)
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	wctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Wait(wctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if runs.Load() != 1 {
		t.Fatalf("runs = %d, want 1", runs.Load())
	}
}

func TestGoRestartPublishFirstError(t *testing.T) {
	s := NewSupervisor(context.Background(), WithCancelOnError(false))
	boom := errors.New("boom")
	s.GoRestart("noisy", func(context.Context) error { return boom },
		WithRestartBackoff(time.Millisecond, 5*time.Millisecond),
		WithPublishFirstError(true),
	)

	deadline := time.After(time.Second)
	for s.Err() == nil {
		select {
		case <-deadline:
			t.Fatal("first error never published")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("Err = %v", s.Err())
	}
	s.Cancel()
}

func TestWaitTimeout(t *testing.T) {
	s := NewSupervisor(context.Background())
	block := make(chan struct{})
	s.Go0("stuck", func(context.Context) { <-block })

	wctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(wctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v", err)
	}
	close(block)
}
