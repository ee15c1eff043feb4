package eurocore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"eurobot/internal/eventbus"
	kit "eurobot/internal/transport"
)

type recordingSink struct {
	mu       sync.Mutex
	rendered []int64
	pinged   []int64
}

func (s *recordingSink) Render(_ context.Context, job Job) (kit.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rendered = append(s.rendered, job.ID)
	return job.RenderTarget, nil
}

func (s *recordingSink) Ping(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinged = append(s.pinged, job.ID)
	return nil
}

func (s *recordingSink) counts() (rendered, pinged []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.rendered...), append([]int64(nil), s.pinged...)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// respTable maps request paths to response bodies. Paths without an entry
// get a 500.
type respTable struct {
	mu sync.Mutex
	m  map[string]string
}

func (rt *respTable) set(path, body string) {
	rt.mu.Lock()
	rt.m[path] = body
	rt.mu.Unlock()
}

func (rt *respTable) get(path string) (string, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	body, ok := rt.m[path]
	return body, ok
}

func statusServer(t *testing.T, responses map[string]string) (*httptest.Server, *respTable) {
	t.Helper()
	rt := &respTable{m: responses}
	if rt.m == nil {
		rt.m = map[string]string{}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := rt.get(r.URL.Path)
		if !ok {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, rt
}

func TestSweepTerminalLifecycle(t *testing.T) {
	const ts = `"2026-02-10T08:30:00.000000Z"`
	srv, _ := statusServer(t, map[string]string{
		"/queue/dispatch/42": `{"id":42,"action":"remove","created_at":` + ts + `,"modified_at":` + ts + `,"status":"success","dispatch_id":null,"error":null}`,
		"/queue/dispatch/7":  `{"id":7,"action":"add","created_at":` + ts + `,"modified_at":` + ts + `,"status":"failure","dispatch_id":null,"error":"dispatch rejected"}`,
		// id 3 has no entry: the fetch fails this tick
	})

	client := NewClient(ClientConfig{BaseURL: srv.URL}, testLogger())
	registry := NewRegistry(testLogger())
	sink := &recordingSink{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	_ = registry.Track(&Job{ID: 42, Action: ActionRemove})
	_ = registry.Track(&Job{ID: 7, Action: ActionAdd, NotifyOnCompletion: true})
	_ = registry.Track(&Job{ID: 3, Action: ActionAdd})

	p := NewPoller(registry, client, sink, nil, bus, testLogger())
	p.Sweep(context.Background())

	rendered, pinged := sink.counts()
	if !containsID(rendered, 42) || !containsID(rendered, 7) {
		t.Fatalf("rendered = %v, want 42 and 7", rendered)
	}
	if containsID(rendered, 3) {
		t.Fatal("job 3 rendered despite fetch failure")
	}
	// only opted-in initiators get pinged
	if containsID(pinged, 42) {
		t.Fatal("job 42 pinged without notify_on_completion")
	}
	if !containsID(pinged, 7) {
		t.Fatalf("pinged = %v, want 7", pinged)
	}

	// terminal jobs leave the active set; the failed fetch stays
	if registry.Len() != 1 {
		t.Fatalf("active after sweep = %d, want 1", registry.Len())
	}
	if _, ok := registry.Get(3); !ok {
		t.Fatal("job 3 dropped after transient fetch failure")
	}

	// failure details were applied before removal
	done := 0
	timeout := time.After(time.Second)
	for done < 2 {
		select {
		case e := <-events:
			if e.Type != "eurocore.job_done" {
				continue
			}
			done++
			je, ok := e.Data.(JobEvent)
			if !ok {
				t.Fatalf("event data = %T", e.Data)
			}
			if je.JobID == 7 && je.Status != string(StatusFailure) {
				t.Fatalf("job 7 event status = %q", je.Status)
			}
		case <-timeout:
			t.Fatalf("got %d job_done events, want 2", done)
		}
	}
}

func TestSweepRetriesAfterTransientError(t *testing.T) {
	const ts = `"2026-02-10T08:30:00.000000Z"`
	srv, responses := statusServer(t, nil)

	client := NewClient(ClientConfig{BaseURL: srv.URL}, testLogger())
	registry := NewRegistry(testLogger())
	sink := &recordingSink{}
	_ = registry.Track(&Job{ID: 3, Action: ActionAdd})

	p := NewPoller(registry, client, sink, nil, nil, testLogger())

	// tick 1: remote down, job stays queued
	p.Sweep(context.Background())
	if registry.Len() != 1 {
		t.Fatalf("active = %d after failed tick", registry.Len())
	}

	// tick 2: remote recovered
	responses.set("/queue/dispatch/3", `{"id":3,"action":"add","created_at":`+ts+`,"modified_at":`+ts+`,"status":"success","dispatch_id":777,"error":null}`)
	p.Sweep(context.Background())

	rendered, _ := sink.counts()
	if !containsID(rendered, 3) {
		t.Fatalf("rendered = %v, want 3", rendered)
	}
	if registry.Len() != 0 {
		t.Fatalf("active = %d after terminal tick", registry.Len())
	}
}

func TestSweepDrainsBornTerminalJob(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL}, testLogger())
	registry := NewRegistry(testLogger())
	sink := &recordingSink{}

	// a submission response can arrive already terminal
	_ = registry.Track(&Job{ID: 9, Action: ActionAdd, Status: StatusSuccess, NotifyOnCompletion: true})

	p := NewPoller(registry, client, sink, nil, nil, testLogger())
	p.Sweep(context.Background())

	rendered, pinged := sink.counts()
	if !containsID(rendered, 9) {
		t.Fatalf("rendered = %v, want 9", rendered)
	}
	if !containsID(pinged, 9) {
		t.Fatalf("pinged = %v, want 9", pinged)
	}
	if registry.Len() != 0 {
		t.Fatalf("active = %d after sweep, want 0", registry.Len())
	}
	if calls != 0 {
		t.Fatalf("remote calls = %d for a terminal job, want 0", calls)
	}
}

func TestSweepDrainsTerminalFromEarlierTick(t *testing.T) {
	// remote stays down; the terminal status is already stored
	srv, _ := statusServer(t, nil)

	client := NewClient(ClientConfig{BaseURL: srv.URL}, testLogger())
	registry := NewRegistry(testLogger())
	sink := &recordingSink{}

	_ = registry.Track(&Job{ID: 11, Action: ActionEdit, NotifyOnCompletion: true})

	// a sweep cut short by its deadline can apply the transition without
	// reaching the notify phase
	msg := "dispatch rejected"
	registry.ApplyUpdate(11, JobDescriptor{
		ID:     11,
		Action: ActionEdit,
		Status: StatusFailure,
		Error:  &msg,
	})

	p := NewPoller(registry, client, sink, nil, nil, testLogger())
	p.Sweep(context.Background())

	rendered, pinged := sink.counts()
	if !containsID(rendered, 11) {
		t.Fatalf("rendered = %v, want 11", rendered)
	}
	if !containsID(pinged, 11) {
		t.Fatalf("pinged = %v, want 11", pinged)
	}
	if registry.Len() != 0 {
		t.Fatalf("active = %d after follow-up sweep, want 0", registry.Len())
	}
}

func TestSweepEmptyActiveSetSkipsRemote(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL}, testLogger())
	p := NewPoller(NewRegistry(testLogger()), client, &recordingSink{}, nil, nil, testLogger())
	p.Sweep(context.Background())

	if calls != 0 {
		t.Fatalf("remote calls = %d, want 0", calls)
	}
}
