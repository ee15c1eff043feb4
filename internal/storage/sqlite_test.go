package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "eurobot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "eurobot.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	st, err := Open(Config{Driver: ""}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("disabled open = (%v, %v), want (nil, nil)", st, err)
	}
	st, err = Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("none open = (%v, %v), want (nil, nil)", st, err)
	}
}

func TestJobHistoryRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec := JobRecord{
		JobID:         42,
		Action:        "add",
		Status:        "success",
		Title:         "Weekly Update",
		Nation:        "testlandia",
		DispatchID:    123456,
		InitiatorID:   7,
		InitiatorName: "alice",
		CreatedAt:     now.Add(-time.Minute),
		FinishedAt:    now,
	}
	if err := st.AppendJob(ctx, rec); err != nil {
		t.Fatalf("AppendJob: %v", err)
	}
	if err := st.AppendJob(ctx, JobRecord{JobID: 43, Action: "remove", Status: "failure", Error: "not found", CreatedAt: now, FinishedAt: now}); err != nil {
		t.Fatalf("AppendJob: %v", err)
	}

	jobs, err := st.RecentJobs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len = %d", len(jobs))
	}
	// newest first
	if jobs[0].JobID != 43 || jobs[0].Error != "not found" {
		t.Fatalf("jobs[0] = %+v", jobs[0])
	}
	got := jobs[1]
	if got.Title != rec.Title || got.Nation != rec.Nation || got.DispatchID != rec.DispatchID {
		t.Fatalf("jobs[1] = %+v", got)
	}
	if !got.FinishedAt.Equal(rec.FinishedAt) {
		t.Fatalf("finished_at = %v, want %v", got.FinishedAt, rec.FinishedAt)
	}
}

func TestPruneJobs(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := JobRecord{JobID: 1, Action: "add", Status: "success", CreatedAt: now.Add(-48 * time.Hour), FinishedAt: now.Add(-48 * time.Hour)}
	fresh := JobRecord{JobID: 2, Action: "add", Status: "success", CreatedAt: now, FinishedAt: now}
	if err := st.AppendJob(ctx, old); err != nil {
		t.Fatalf("AppendJob: %v", err)
	}
	if err := st.AppendJob(ctx, fresh); err != nil {
		t.Fatalf("AppendJob: %v", err)
	}

	n, err := st.PruneJobs(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneJobs: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	jobs, err := st.RecentJobs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobID != 2 {
		t.Fatalf("remaining = %+v", jobs)
	}
}

func TestDedupRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.GetDedup(ctx, "missing"); err != nil || ok {
		t.Fatalf("GetDedup missing = (%v, %v)", ok, err)
	}

	until := time.Now().Add(time.Minute).Truncate(time.Millisecond)
	if err := st.PutDedup(ctx, "k1", until); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	got, ok, err := st.GetDedup(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("GetDedup = (%v, %v)", ok, err)
	}
	if !got.Equal(until) {
		t.Fatalf("until = %v, want %v", got, until)
	}

	// upsert replaces the expiry
	later := until.Add(time.Hour)
	if err := st.PutDedup(ctx, "k1", later); err != nil {
		t.Fatalf("PutDedup (upsert): %v", err)
	}
	got, _, _ = st.GetDedup(ctx, "k1")
	if !got.Equal(later) {
		t.Fatalf("until after upsert = %v, want %v", got, later)
	}

	// empty keys are ignored
	if err := st.PutDedup(ctx, "", until); err != nil {
		t.Fatalf("PutDedup empty key: %v", err)
	}
	if _, ok, _ := st.GetDedup(ctx, ""); ok {
		t.Fatal("empty key stored")
	}
}
