package router

import (
	"context"
	"errors"
	"sync"

	kit "eurobot/internal/transport"
)

var (
	// ErrFormPending is returned when a user already has an open prompt.
	ErrFormPending = errors.New("another prompt is already waiting for input")
	// ErrFormCancelled is returned when a pending prompt is cancelled
	// (replaced, or the router shut down).
	ErrFormCancelled = errors.New("prompt cancelled")
)

// FormRegistry implements the suspend-for-user-input pattern: a command
// handler opens a prompt for a user and waits; the next plain (non-command)
// message from that user resolves the wait.
//
// At most one prompt per user. Prompts are resolved from the dispatch path,
// so a waiting handler must not block the router worker that delivers the
// answer - handlers run on a worker pool, which provides that.
type FormRegistry struct {
	mu      sync.Mutex
	pending map[int64]chan *kit.Message
}

func NewFormRegistry() *FormRegistry {
	return &FormRegistry{pending: map[int64]chan *kit.Message{}}
}

// Await blocks until the user's next plain message arrives or ctx is done.
func (f *FormRegistry) Await(ctx context.Context, userID int64) (*kit.Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ch := make(chan *kit.Message, 1)
	f.mu.Lock()
	if _, busy := f.pending[userID]; busy {
		f.mu.Unlock()
		return nil, ErrFormPending
	}
	f.pending[userID] = ch
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		if f.pending[userID] == ch {
			delete(f.pending, userID)
		}
		f.mu.Unlock()
	}()

	select {
	case m, ok := <-ch:
		if !ok || m == nil {
			return nil, ErrFormCancelled
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver routes a plain message to the user's pending prompt, if any.
func (f *FormRegistry) Deliver(m *kit.Message) bool {
	if m == nil {
		return false
	}
	f.mu.Lock()
	ch, ok := f.pending[m.FromID]
	if ok {
		delete(f.pending, m.FromID)
	}
	f.mu.Unlock()
	if !ok {
		return false
	}
	ch <- m
	close(ch)
	return true
}

// CancelAll resolves every pending prompt with ErrFormCancelled.
func (f *FormRegistry) CancelAll() {
	f.mu.Lock()
	for id, ch := range f.pending {
		delete(f.pending, id)
		close(ch)
	}
	f.mu.Unlock()
}
