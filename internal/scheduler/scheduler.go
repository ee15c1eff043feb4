// Package scheduler runs named periodic jobs (poll sweeps, history pruning)
// on cron or fixed-interval triggers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "eurobot/pkg/logx"
)

// JobFunc runs one tick of a scheduled job. The context carries the
// per-run timeout, if any.
type JobFunc func(ctx context.Context)

type entry struct {
	id      cron.EntryID
	name    string
	timeout time.Duration
	fn      JobFunc
	running atomic.Bool
}

// Service wraps a cron runner. Overlapping runs of the same job are skipped.
type Service struct {
	log logx.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]*entry
	started bool

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:     log,
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		entries: map[string]*entry{},
	}
}

// Add registers a job under a unique name. The schedule accepts the forms
// understood by ParseSchedule. Re-adding an existing name replaces it.
func (s *Service) Add(name, schedule string, timeout time.Duration, fn JobFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("scheduler: name and fn required")
	}
	spec, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old.id)
		delete(s.entries, name)
	}

	e := &entry{name: name, timeout: timeout, fn: fn}
	run := func() { s.runEntry(e) }

	switch spec.Kind {
	case SpecCron:
		id, err := s.cron.AddFunc(spec.Cron, run)
		if err != nil {
			return fmt.Errorf("scheduler: %s: %w", name, err)
		}
		e.id = id
	case SpecInterval:
		e.id = s.cron.Schedule(cron.Every(spec.Every), cron.FuncJob(run))
	}

	s.entries[name] = e
	s.log.Debug("job scheduled", logx.String("job", name), logx.String("schedule", schedule))
	return nil
}

func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		s.cron.Remove(e.id)
		delete(s.entries, name)
	}
}

func (s *Service) runEntry(e *entry) {
	// Skip if the previous run is still going.
	if !e.running.CompareAndSwap(false, true) {
		s.log.Warn("job still running; tick skipped", logx.String("job", e.name))
		return
	}
	defer e.running.Store(false)

	s.mu.Lock()
	base := s.runCtx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}

	ctx := base
	var cancel context.CancelFunc
	if e.timeout > 0 {
		ctx, cancel = context.WithTimeout(base, e.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", logx.String("job", e.name), logx.Any("panic", r))
		}
	}()

	start := time.Now()
	e.fn(ctx)
	s.log.Trace("job tick done", logx.String("job", e.name), logx.Duration("took", time.Since(start)))
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.cron.Start()
}

// Stop halts triggering and waits for in-flight runs until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancelRun := s.runCancel
	s.runCancel = nil
	s.runCtx = nil
	c := s.cron
	s.mu.Unlock()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		// Give up waiting; cancel in-flight run contexts.
	}
	if cancelRun != nil {
		cancelRun()
	}
}
