package eurocore

import (
	"context"
	"time"

	"eurobot/internal/eventbus"
	"eurobot/internal/storage"
	logx "eurobot/pkg/logx"
)

// Poller reconciles tracked jobs against the remote API on a fixed interval.
// One erroring or slow job never aborts the sweep of the others.
type Poller struct {
	registry *Registry
	client   *Client
	sink     NotificationSink
	store    storage.Store // optional job history
	bus      eventbus.Bus  // optional lifecycle events
	log      logx.Logger
}

func NewPoller(registry *Registry, client *Client, sink NotificationSink, store storage.Store, bus eventbus.Bus, log logx.Logger) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{
		registry: registry,
		client:   client,
		sink:     sink,
		store:    store,
		bus:      bus,
		log:      log,
	}
}

// Sweep runs one poll tick:
//
//  1. snapshot the active set
//  2. fetch each queued job's status; a RemoteError skips the job this tick
//  3. render every terminal job and ping opted-in initiators
//  4. drop terminal jobs from the active set
func (p *Poller) Sweep(ctx context.Context) {
	jobs := p.registry.Active()
	if len(jobs) == 0 {
		return
	}
	p.log.Trace("poll sweep", logx.Int("active", len(jobs)))

	for _, snap := range jobs {
		// Already terminal: a submission response that arrived terminal, or
		// a transition applied by a sweep that was cut short. No fetch.
		if snap.Status.Terminal() {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		d, err := p.client.FetchStatus(ctx, snap.ID)
		if err != nil {
			// Transient; the job stays queued and retries next tick.
			p.log.Warn("status fetch failed", logx.Int64("job_id", snap.ID), logx.Err(err))
			continue
		}
		p.registry.ApplyUpdate(snap.ID, d)
	}

	// Every job whose stored status is terminal leaves the active set this
	// sweep, no matter which sweep observed the transition. Notification is
	// best-effort; removal does not depend on it.
	for _, job := range p.registry.Active() {
		if !job.Status.Terminal() {
			continue
		}
		p.notify(ctx, job)
		p.persist(ctx, job)
		p.registry.Remove(job.ID)
	}
}

// notify renders the terminal state and pings the initiator if requested.
// Render and ping are independent best-effort steps.
func (p *Poller) notify(ctx context.Context, job Job) {
	if p.sink == nil {
		return
	}
	if _, err := p.sink.Render(ctx, job); err != nil {
		p.log.Warn("status render failed", logx.Int64("job_id", job.ID), logx.Err(err))
	}
	if job.NotifyOnCompletion {
		if err := p.sink.Ping(ctx, job); err != nil {
			p.log.Warn("completion ping failed", logx.Int64("job_id", job.ID), logx.Err(err))
		}
	}

	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: "eurocore.job_done", Data: JobEvent{
			JobID:  job.ID,
			Action: string(job.Action),
			Status: string(job.Status),
		}})
	}
}

// persist appends the terminal job to history (best-effort).
func (p *Poller) persist(ctx context.Context, job Job) {
	if p.store == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := p.store.AppendJob(cctx, storage.JobRecord{
		JobID:         job.ID,
		Action:        string(job.Action),
		Status:        string(job.Status),
		Title:         job.Title,
		Nation:        job.Nation,
		DispatchID:    job.DispatchID,
		Error:         job.Error,
		InitiatorID:   job.InitiatorID,
		InitiatorName: job.InitiatorName,
		CreatedAt:     job.CreatedAt,
		FinishedAt:    time.Now(),
	})
	if err != nil {
		p.log.Warn("job history write failed", logx.Int64("job_id", job.ID), logx.Err(err))
	}
}

// JobEvent is published on the event bus when a job reaches a terminal state.
type JobEvent struct {
	JobID  int64  `json:"job_id"`
	Action string `json:"action"`
	Status string `json:"status"`
}
