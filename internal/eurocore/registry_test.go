package eurocore

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	logx "eurobot/pkg/logx"
)

func testLogger() logx.Logger { return logx.Nop() }

func wt(t time.Time) WireTime { return WireTime{t} }

func TestTrackDuplicateKeepsFirst(t *testing.T) {
	r := NewRegistry(testLogger())

	if err := r.Track(&Job{ID: 1, Action: ActionAdd, Title: "first"}); err != nil {
		t.Fatalf("Track: %v", err)
	}
	err := r.Track(&Job{ID: 1, Action: ActionEdit, Title: "second"})
	if !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("want ErrDuplicateJob, got %v", err)
	}

	j, ok := r.Get(1)
	if !ok || j.Title != "first" {
		t.Fatalf("stored job = %+v, ok=%v", j, ok)
	}
	if j.Status != StatusQueued {
		t.Fatalf("default status = %q", j.Status)
	}
}

func TestApplyUpdateTerminalTransition(t *testing.T) {
	r := NewRegistry(testLogger())
	now := time.Now().UTC().Truncate(time.Microsecond)
	if err := r.Track(&Job{ID: 5, Action: ActionAdd, ModifiedAt: now}); err != nil {
		t.Fatalf("Track: %v", err)
	}

	// non-terminal update is not reported as a transition
	if r.ApplyUpdate(5, JobDescriptor{Status: StatusQueued, ModifiedAt: wt(now)}) {
		t.Fatal("queued->queued reported as terminal")
	}

	did := int64(12345)
	if !r.ApplyUpdate(5, JobDescriptor{
		Status:     StatusSuccess,
		ModifiedAt: wt(now.Add(time.Second)),
		DispatchID: &did,
	}) {
		t.Fatal("queued->success not reported as terminal")
	}

	j, _ := r.Get(5)
	if j.Status != StatusSuccess || j.DispatchID != 12345 {
		t.Fatalf("job = %+v", j)
	}
	if !j.ModifiedAt.Equal(now.Add(time.Second)) {
		t.Fatalf("modified_at = %v", j.ModifiedAt)
	}

	// terminal state is frozen
	if r.ApplyUpdate(5, JobDescriptor{Status: StatusFailure, ModifiedAt: wt(now.Add(2 * time.Second))}) {
		t.Fatal("terminal job reported a second transition")
	}
	j, _ = r.Get(5)
	if j.Status != StatusSuccess {
		t.Fatalf("terminal status changed to %q", j.Status)
	}
}

func TestApplyUpdateModifiedAtNeverRegresses(t *testing.T) {
	r := NewRegistry(testLogger())
	now := time.Now().UTC()
	if err := r.Track(&Job{ID: 9, ModifiedAt: now}); err != nil {
		t.Fatalf("Track: %v", err)
	}

	r.ApplyUpdate(9, JobDescriptor{Status: StatusQueued, ModifiedAt: wt(now.Add(-time.Hour))})
	j, _ := r.Get(9)
	if !j.ModifiedAt.Equal(now) {
		t.Fatalf("modified_at regressed: %v < %v", j.ModifiedAt, now)
	}
}

func TestApplyUpdateUntrackedIsNoop(t *testing.T) {
	r := NewRegistry(testLogger())
	if r.ApplyUpdate(404, JobDescriptor{Status: StatusSuccess}) {
		t.Fatal("untracked update reported terminal")
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestRemoveAndActiveSnapshot(t *testing.T) {
	r := NewRegistry(testLogger())
	_ = r.Track(&Job{ID: 1})
	_ = r.Track(&Job{ID: 2})

	active := r.Active()
	if len(active) != 2 {
		t.Fatalf("active = %d", len(active))
	}
	// snapshot holds copies, not live state
	active[0].Status = StatusFailure
	j, _ := r.Get(active[0].ID)
	if j.Status == StatusFailure {
		t.Fatal("snapshot aliases registry state")
	}

	r.Remove(1)
	if r.Len() != 1 {
		t.Fatalf("len after remove = %d", r.Len())
	}
}
