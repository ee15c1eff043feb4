package eurocore

import (
	"sync"

	logx "eurobot/pkg/logx"
)

// Registry owns the active-job set and its state machine. A single mutex
// serializes submissions against poll sweeps: a job tracked mid-sweep lands
// either in that sweep's snapshot or the next one, never half-applied.
type Registry struct {
	log logx.Logger

	mu   sync.Mutex
	jobs map[int64]*Job
}

func NewRegistry(log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{log: log, jobs: map[int64]*Job{}}
}

// Track inserts a new queued job. A duplicate id is an invariant violation:
// it is reported via ErrDuplicateJob and the registry keeps the first job.
func (r *Registry) Track(job *Job) error {
	if job == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		r.log.Error("job id already tracked", logx.Int64("job_id", job.ID))
		return ErrDuplicateJob
	}
	if job.Status == "" {
		job.Status = StatusQueued
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

// ApplyUpdate projects a wire snapshot onto the stored job and reports
// whether this update moved the job from queued to a terminal status.
//
// Untracked ids are a no-op (the job may have been removed concurrently).
// Terminal jobs never change again, and ModifiedAt never goes backwards.
func (r *Registry) ApplyUpdate(jobID int64, d JobDescriptor) (terminal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return false
	}
	if job.Status.Terminal() {
		return false
	}

	wasQueued := job.Status == StatusQueued
	job.Status = d.Status
	if t := d.ModifiedAt.Time; t.After(job.ModifiedAt) {
		job.ModifiedAt = t
	}
	if d.DispatchID != nil {
		job.DispatchID = *d.DispatchID
	}
	if d.Error != nil {
		job.Error = *d.Error
	} else {
		job.Error = ""
	}

	return wasQueued && job.Status.Terminal()
}

// Active returns a stable snapshot of tracked jobs, as copies.
func (r *Registry) Active() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	return out
}

// Get returns a copy of one tracked job.
func (r *Registry) Get(jobID int64) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Remove drops a job from the active set. Called after the terminal
// notification has been rendered.
func (r *Registry) Remove(jobID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

// Len reports the size of the active set.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
