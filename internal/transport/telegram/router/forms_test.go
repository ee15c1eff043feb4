package router

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	kit "eurobot/internal/transport"
)

func TestFormAwaitDeliver(t *testing.T) {
	f := NewFormRegistry()

	got := make(chan *kit.Message, 1)
	errCh := make(chan error, 1)
	go func() {
		m, err := f.Await(context.Background(), 7)
		got <- m
		errCh <- err
	}()

	// wait for the prompt to register before delivering
	deadline := time.After(time.Second)
	for !f.Deliver(&kit.Message{FromID: 7, Text: "alice pw"}) {
		select {
		case <-deadline:
			t.Fatal("Deliver never found a pending prompt")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := <-errCh; err != nil {
		t.Fatalf("Await: %v", err)
	}
	m := <-got
	if m == nil || m.Text != "alice pw" {
		t.Fatalf("message = %+v", m)
	}
}

func TestFormDeliverWithoutPrompt(t *testing.T) {
	f := NewFormRegistry()
	if f.Deliver(&kit.Message{FromID: 1, Text: "hello"}) {
		t.Fatal("Deliver consumed a message without a pending prompt")
	}
}

func TestFormSecondAwaitRejected(t *testing.T) {
	f := NewFormRegistry()

	started := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		close(started)
		_, _ = f.Await(ctx, 9)
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	if _, err := f.Await(context.Background(), 9); !errors.Is(err, ErrFormPending) {
		t.Fatalf("second Await err = %v, want ErrFormPending", err)
	}
}

func TestFormAwaitContextCancel(t *testing.T) {
	f := NewFormRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Await(ctx, 3); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Await err = %v", err)
	}
	// prompt cleaned up: a new Await is accepted again
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	if _, err := f.Await(ctx2, 3); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Await after cleanup err = %v", err)
	}
}

func TestFormCancelAll(t *testing.T) {
	f := NewFormRegistry()

	errCh := make(chan error, 1)
	go func() {
		_, err := f.Await(context.Background(), 5)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)

	f.CancelAll()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrFormCancelled) {
			t.Fatalf("Await err = %v, want ErrFormCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not return after CancelAll")
	}
}
