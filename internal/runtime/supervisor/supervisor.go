// Package supervisor manages long-lived goroutines with panic recovery,
// optional restart-with-backoff, and ordered shutdown.
package supervisor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	logx "eurobot/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	wg sync.WaitGroup

	mu            sync.Mutex
	firstErr      error
	cancelOnError bool
}

type Option func(*Supervisor)

func WithLogger(l logx.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

// WithCancelOnError controls whether the first task error cancels the whole
// supervisor context. Defaults to true.
func WithCancelOnError(v bool) Option {
	return func(s *Supervisor) { s.cancelOnError = v }
}

func NewSupervisor(parent context.Context, opts ...Option) *Supervisor {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:           ctx,
		cancel:        cancel,
		log:           logx.Nop(),
		cancelOnError: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first task error observed, if any.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

func (s *Supervisor) recordErr(name string, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = fmt.Errorf("%s: %w", name, err)
	}
	cancel := s.cancelOnError
	s.mu.Unlock()
	if cancel {
		s.cancel()
	}
}

func recoverToErr(name string) error {
	if r := recover(); r != nil {
		return fmt.Errorf("panic in %s: %v", name, r)
	}
	return nil
}

// Go runs fn once. A returned error (or recovered panic) becomes the
// supervisor's first error and, by default, cancels the supervisor context.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := func() (err error) {
			defer func() {
				if perr := recoverToErr(name); perr != nil {
					err = perr
				}
			}()
			return fn(s.ctx)
		}()
		if err != nil && err != context.Canceled {
			s.log.Error("task failed", logx.String("task", name), logx.Err(err))
			s.recordErr(name, err)
		}
	}()
}

// Go0 runs fn once; fn reports nothing. Panics are recovered and recorded.
func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

type restartConfig struct {
	minBackoff time.Duration
	maxBackoff time.Duration

	// publishFirstError makes the first failure visible via Err() even though
	// the task keeps restarting.
	publishFirstError bool

	// stopOnCleanExit stops the restart loop when fn returns nil. When false
	// the task is restarted even after a clean return, as long as the context
	// is alive.
	stopOnCleanExit bool
}

type RestartOption func(*restartConfig)

func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(c *restartConfig) {
		if min > 0 {
			c.minBackoff = min
		}
		if max >= c.minBackoff {
			c.maxBackoff = max
		}
	}
}

func WithPublishFirstError(v bool) RestartOption {
	return func(c *restartConfig) { c.publishFirstError = v }
}

func WithStopOnCleanExit(v bool) RestartOption {
	return func(c *restartConfig) { c.stopOnCleanExit = v }
}

// GoRestart runs fn in a loop, restarting it with jittered exponential
// backoff after each failure. The loop exits when the supervisor context is
// cancelled.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	cfg := restartConfig{
		minBackoff:      250 * time.Millisecond,
		maxBackoff:      30 * time.Second,
		stopOnCleanExit: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		backoff := cfg.minBackoff
		published := false

		for {
			if s.ctx.Err() != nil {
				return
			}

			err := func() (err error) {
				defer func() {
					if perr := recoverToErr(name); perr != nil {
						err = perr
					}
				}()
				return fn(s.ctx)
			}()

			if s.ctx.Err() != nil {
				return
			}

			if err == nil {
				if cfg.stopOnCleanExit {
					return
				}
				backoff = cfg.minBackoff
			} else {
				s.log.Error("task failed, restarting", logx.String("task", name), logx.Duration("backoff", backoff), logx.Err(err))
				if cfg.publishFirstError && !published {
					published = true
					s.mu.Lock()
					if s.firstErr == nil {
						s.firstErr = fmt.Errorf("%s: %w", name, err)
					}
					s.mu.Unlock()
				}
			}

			// Jittered sleep before restart.
			d := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2)+1))
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(d):
			}

			backoff *= 2
			if backoff > cfg.maxBackoff {
				backoff = cfg.maxBackoff
			}
		}
	}()
}

// GoRestart0 is GoRestart for functions without an error return.
func (s *Supervisor) GoRestart0(name string, fn func(ctx context.Context), opts ...RestartOption) {
	s.GoRestart(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	}, opts...)
}

// Wait blocks until all tasks have finished or ctx is done. It returns the
// first recorded task error, or ctx.Err() when the wait itself times out.
func (s *Supervisor) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
