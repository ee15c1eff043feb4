// Package notifier delivers outbound chat notifications through an async
// pipeline: bounded queue, worker pool, rate limit, retry with jittered
// backoff, and a dedup window.
package notifier

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"eurobot/internal/eventbus"
	rtsup "eurobot/internal/runtime/supervisor"
	"eurobot/internal/storage"
	kit "eurobot/internal/transport"
	logx "eurobot/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

const (
	sendTimeout         = 10 * time.Second
	persistWriteTimeout = 250 * time.Millisecond
	persistReadTimeout  = 25 * time.Millisecond
)

// task is one queued notification; the dedup key is computed at enqueue
// time so workers stay cheap.
type task struct {
	n   kit.Notification
	key string
}

type dedupWrite struct {
	key   string
	until time.Time
}

// Service is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	bus     eventbus.Bus
	store   storage.Store

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan task
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while a stop is in flight

	// dmu guards the in-memory suppress-until cache.
	dmu   sync.Mutex
	dedup map[string]time.Time

	// Best-effort persistent dedup writes, drained by persistLoop.
	persistCh chan dedupWrite
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		adapter: adapter,
		log:     log,
		bus:     bus,
		store:   store,
		dedup:   map[string]time.Time{},
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}

	s.cfg = cfg
	// Burst equals the per-second rate so short spikes don't stall.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start spins up the worker pool. Idempotent; a Start racing a Stop waits
// for the stop to finish first.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan task, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers

	if s.cfg.PersistDedup && s.store != nil {
		s.persistCh = make(chan dedupWrite, 1024)
	}

	s.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "notifier"))),
		// A dead worker is restarted, never escalated to app shutdown.
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	pch := s.persistCh
	st := s.store
	s.mu.Unlock()

	// A loop returning outside shutdown is a bug worth restarting over.
	exitErr := func(c context.Context, what string) error {
		if s.stopping() {
			return context.Canceled
		}
		if c.Err() != nil {
			return c.Err()
		}
		return errors.Newf("notifier %s exited unexpectedly", what)
	}

	if pch != nil {
		sup.GoRestart("dedup.persist", func(c context.Context) error {
			s.persistLoop(c, pch, st)
			return exitErr(c, "persist loop")
		}, rtsup.WithPublishFirstError(true))
	}

	for i := 0; i < workers; i++ {
		sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.workerLoop(c, q)
			return exitErr(c, "worker")
		}, rtsup.WithPublishFirstError(true))
	}
}

func (s *Service) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopDone != nil
}

// Stop closes intake and drains the queue best-effort until ctx's deadline.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	pch := s.persistCh
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	// Drain asynchronously so the caller can time out cleanly.
	go func() {
		defer close(done)
		s.sendWG.Wait()
		closeQuiet := func(fn func()) {
			defer func() { _ = recover() }()
			fn()
		}
		if pch != nil {
			closeQuiet(func() { close(pch) })
		}
		closeQuiet(func() { close(q) })
		if sup != nil {
			_ = sup.Wait(context.Background())
		}

		s.mu.Lock()
		s.queue = nil
		s.persistCh = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if sup != nil {
			sup.Cancel()
		}
	}
}

func (s *Service) publishEvent(typ string, n kit.Notification, key, errText string) {
	if s.bus == nil {
		return
	}
	now := time.Now()
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: NotificationEvent{
		Channel:  n.Channel,
		ChatID:   n.Target.ChatID,
		ThreadID: n.Target.ThreadID,
		Key:      key,
		At:       now,
		Error:    errText,
	}})
}

// Notify enqueues n for async delivery. A duplicate inside the dedup
// window is silently absorbed; a full queue is reported, not waited on.
func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	window := s.cfg.DedupWindow
	maxEntries := s.cfg.DedupMaxEntries
	persist := s.cfg.PersistDedup
	st := s.store
	pch := s.persistCh
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	key := dedupKey(n)
	if window > 0 && key != "" && !s.dedupAllow(ctx, key, window, maxEntries, persist, st, pch) {
		s.publishEvent("notifier.deduped", n, key, "")
		return nil
	}

	s.publishEvent("notifier.queued", n, key, "")

	select {
	case q <- task{n: n, key: key}:
		return nil
	default:
		s.publishEvent("notifier.dropped", n, key, ErrQueueFull.Error())
		return ErrQueueFull
	}
}

func (s *Service) persistLoop(ctx context.Context, ch <-chan dedupWrite, st storage.Store) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ch == nil || st == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-ch:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, persistWriteTimeout)
			_ = st.PutDedup(wctx, w.key, w.until)
			cancel()
		}
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan task) {
	if ctx == nil {
		ctx = context.Background()
	}
	if q == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, t)
		}
	}
}

func (s *Service) deliver(ctx context.Context, t task) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	ad := s.adapter
	log := s.log
	s.mu.Unlock()

	if ad == nil || t.n.Text == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return
			}
		}

		// Bound each send so a hung call can't pin the worker.
		callCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		_, err := ad.SendText(callCtx, t.n.Target, t.n.Text, t.n.Options)
		cancel()
		if err == nil {
			s.publishEvent("notifier.sent", t.n, t.key, "")
			return
		}
		lastErr = err
		log.Debug("notify send failed",
			logx.Any("err", err), logx.Int("attempt", attempt), logx.Int("max", attempts))

		if attempt >= attempts {
			break
		}
		if !sleepCtx(ctx, retryDelay(cfg, attempt)) {
			return
		}
	}

	if lastErr != nil {
		s.publishEvent("notifier.failed", t.n, t.key, lastErr.Error())
	}
}

// sleepCtx waits d or until ctx is done; returns false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return false
	}
}

// dedupKey hashes channel, target, priority, and text. Notifications
// without a channel never dedup.
func dedupKey(n kit.Notification) string {
	if n.Channel == "" {
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(n.Channel))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(fmt.Sprintf("%d:%d:%d|", n.Target.ChatID, n.Target.ThreadID, n.Priority)))
	_, _ = h.Write([]byte(n.Text))
	return fmt.Sprintf("%x", h.Sum64())
}

// dedupAllow reports whether key may send now, and if so opens a new
// suppress window. The persistent store is consulted best-effort so a
// restart does not re-send inside the window.
func (s *Service) dedupAllow(ctx context.Context, key string, window time.Duration, max int, persist bool, st storage.Store, pch chan dedupWrite) bool {
	now := time.Now()

	s.dmu.Lock()
	if s.dedup == nil {
		s.dedup = map[string]time.Time{}
	}
	until, held := s.dedup[key]
	s.dmu.Unlock()
	if held && now.Before(until) {
		return false
	}

	if persist && st != nil {
		qctx := ctx
		if qctx == nil {
			qctx = context.Background()
		}
		rctx, cancel := context.WithTimeout(qctx, persistReadTimeout)
		stored, ok, err := st.GetDedup(rctx, key)
		cancel()
		if err == nil && ok && now.Before(stored) {
			s.dmu.Lock()
			s.dedup[key] = stored
			s.dmu.Unlock()
			return false
		}
	}

	newUntil := now.Add(window)
	s.dmu.Lock()
	s.dedup[key] = newUntil
	for k, u := range s.dedup {
		if !now.Before(u) {
			delete(s.dedup, k)
		}
	}
	// Over the cap, evict whichever entry expires soonest.
	for max > 0 && len(s.dedup) > max {
		var (
			evict   string
			soonest time.Time
		)
		for k, u := range s.dedup {
			if evict == "" || u.Before(soonest) {
				evict, soonest = k, u
			}
		}
		if evict == "" {
			break
		}
		delete(s.dedup, evict)
	}
	s.dmu.Unlock()

	if persist && st != nil && pch != nil {
		select {
		case pch <- dedupWrite{key: key, until: newUntil}:
		default:
		}
	}
	return true
}

// retryDelay doubles from RetryBase per completed attempt, capped at
// RetryMaxDelay, with 0.7..1.3 jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	base := cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxD := cfg.RetryMaxDelay
	if maxD <= 0 {
		maxD = 10 * time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	d = time.Duration(float64(d) * (0.7 + rng.Float64()*0.6))
	if d < 0 {
		return 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}
