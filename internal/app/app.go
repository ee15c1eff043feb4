package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"eurobot/internal/config"
	"eurobot/internal/eurocore"
	"eurobot/internal/eventbus"
	"eurobot/internal/notifier"
	rtsup "eurobot/internal/runtime/supervisor"
	"eurobot/internal/scheduler"
	"eurobot/internal/storage"
	kit "eurobot/internal/transport"
	telegram "eurobot/internal/transport/telegram/adapter"
	"eurobot/internal/transport/telegram/router"
	"eurobot/internal/transport/telegram/sink"
	logx "eurobot/pkg/logx"
)

type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter kit.Adapter

	notif *notifier.Service
	sched *scheduler.Service

	client   *eurocore.Client
	sessions *eurocore.SessionStore
	registry *eurocore.Registry
	poller   *eurocore.Poller
	sink     *sink.Sink

	cmdm *router.CommandManager

	pollInterval time.Duration

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(context.Background(), cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with Telegram logging disabled; Apply() would warn about a
	// missing target before SetTelegramTarget runs.
	baseLogCfg := mapLogConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	applyLogTarget(logSvc, cfg)
	logSvc.Apply(mapLogConfig(cfg))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notifSvc := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus, store)

	ccfg, pollInterval, sessionTTL, err := mapEurocoreConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := eurocore.NewClient(ccfg, log.With(logx.String("comp", "eurocore")))
	sessions := eurocore.NewSessionStore(client, sessionTTL, log.With(logx.String("comp", "sessions")))
	registry := eurocore.NewRegistry(log.With(logx.String("comp", "registry")))

	statusSink := sink.New(ad, notifSvc, log.With(logx.String("comp", "sink")))
	poller := eurocore.NewPoller(registry, client, statusSink, store, bus, log.With(logx.String("comp", "poller")))

	sched := scheduler.New(log.With(logx.String("comp", "scheduler")))

	cmdm := router.NewCommandManager(log.With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs)

	a := &App{
		cfgPath:      cfgPath,
		cfgm:         cfgm,
		log:          log,
		logs:         logSvc,
		bus:          bus,
		store:        store,
		adapter:      ad,
		notif:        notifSvc,
		sched:        sched,
		client:       client,
		sessions:     sessions,
		registry:     registry,
		poller:       poller,
		sink:         statusSink,
		cmdm:         cmdm,
		pollInterval: pollInterval,
		updates:      make(chan kit.Update, 256),
	}
	cmdm.SetRegistry(a.commands())
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if err := config.Validate(c, cfg); err != nil {
			return err
		}
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		_, _, _, err := mapEurocoreConfig(cfg)
		return err
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}

	if err := a.sched.Add("eurocore.poll", a.pollInterval.String(), a.pollInterval, a.poller.Sweep); err != nil {
		return err
	}
	if a.store != nil {
		err := a.sched.Add("storage.prune", "30 4 * * *", time.Minute, func(c context.Context) {
			n, err := a.store.PruneJobs(c, time.Now().Add(-30*24*time.Hour))
			if err != nil {
				a.log.Warn("job history prune failed", logx.Err(err))
				return
			}
			if n > 0 {
				a.log.Info("job history pruned", logx.Int64("rows", n))
			}
		})
		if err != nil {
			return err
		}
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	// Readiness precedes the first poll sweep.
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify unavailable", logx.Err(err))
	}
	a.sched.Start(a.sup.Context())

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for changes to take effect")
			break
		}
	}

	// update log target first so Apply() doesn't warn when Telegram logging is on
	applyLogTarget(a.logs, newCfg)
	a.logs.Apply(mapLogConfig(newCfg))

	a.cmdm.SetOwners(newCfg.Telegram.OwnerUserIDs)

	if ccfg, pollInterval, sessionTTL, err := mapEurocoreConfig(newCfg); err != nil {
		a.log.Warn("invalid eurocore config; keeping previous", logx.Err(err))
	} else {
		a.client.Apply(ccfg)
		a.sessions.Apply(sessionTTL)
		if pollInterval != a.pollInterval {
			a.pollInterval = pollInterval
			if err := a.sched.Add("eurocore.poll", pollInterval.String(), pollInterval, a.poller.Sweep); err != nil {
				a.log.Warn("poll interval update failed", logx.Err(err))
			} else {
				a.log.Info("poll interval updated", logx.Duration("interval", pollInterval))
			}
		}
	}

	prevNotifEnabled := a.notif.Enabled()
	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
		if prevNotifEnabled && !ncfg.Enabled {
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		} else if !prevNotifEnabled && ncfg.Enabled {
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
	}

	fields = append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// Cancel the run context so background loops unwind immediately.
	a.sup.Cancel()

	// Run each shutdown step under an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("notifier", 1*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func applyLogTarget(logs *logx.Service, cfg *config.Config) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		logs.SetTelegramTarget(0, 0)
		return
	}
	if chatID, err := strconv.ParseInt(raw, 10, 64); err == nil {
		logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
}

func mapEurocoreConfig(cfg *config.Config) (eurocore.ClientConfig, time.Duration, time.Duration, error) {
	ec := cfg.Eurocore

	reqTimeout, err := config.ParseDurationOrDefault("eurocore.request_timeout", ec.RequestTimeout, 15*time.Second)
	if err != nil {
		return eurocore.ClientConfig{}, 0, 0, err
	}
	nationsTTL, err := config.ParseDurationOrDefault("eurocore.nations_cache_ttl", ec.NationsCacheTTL, 5*time.Minute)
	if err != nil {
		return eurocore.ClientConfig{}, 0, 0, err
	}
	pollInterval, err := config.ParseDurationOrDefault("eurocore.poll_interval", ec.PollInterval, 10*time.Second)
	if err != nil {
		return eurocore.ClientConfig{}, 0, 0, err
	}
	sessionTTL, err := config.ParseDurationOrDefault("eurocore.session_ttl", ec.SessionTTL, 12*time.Hour)
	if err != nil {
		return eurocore.ClientConfig{}, 0, 0, err
	}
	if pollInterval < time.Second {
		return eurocore.ClientConfig{}, 0, 0, fmt.Errorf("eurocore.poll_interval: must be at least 1s")
	}

	return eurocore.ClientConfig{
		BaseURL:         ec.BaseURL,
		RequestTimeout:  reqTimeout,
		NationsCacheTTL: nationsTTL,
	}, pollInterval, sessionTTL, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	out := notifier.Config{
		Enabled:         true,
		Workers:         2,
		QueueSize:       512,
		RatePerSec:      3,
		RetryMax:        3,
		RetryBase:       500 * time.Millisecond,
		RetryMaxDelay:   10 * time.Second,
		DedupWindow:     1 * time.Minute,
		DedupMaxEntries: 2000,
	}
	if cfg == nil || cfg.Notifier == nil {
		return out, nil
	}
	n := cfg.Notifier
	out.Enabled = n.Enabled
	out.PersistDedup = n.PersistDedup
	if n.Workers != 0 {
		out.Workers = n.Workers
	}
	if n.QueueSize != 0 {
		out.QueueSize = n.QueueSize
	}
	if n.RatePerSec != 0 {
		out.RatePerSec = n.RatePerSec
	}
	if n.RetryMax != 0 {
		out.RetryMax = n.RetryMax
	}

	var err error
	out.RetryBase, err = config.ParseDurationOrDefault("notifier.retry_base", n.RetryBase, out.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	out.RetryMaxDelay, err = config.ParseDurationOrDefault("notifier.retry_max_delay", n.RetryMaxDelay, out.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	out.DedupWindow, err = config.ParseDurationOrDefault("notifier.dedup_window", n.DedupWindow, out.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	if n.DedupMaxEntries != 0 {
		out.DedupMaxEntries = n.DedupMaxEntries
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", driver)
	}
}
