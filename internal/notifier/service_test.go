package notifier

import (
	"context"
	"testing"
	"time"

	kit "eurobot/internal/transport"
	logx "eurobot/pkg/logx"
)

func TestDedupKey(t *testing.T) {
	base := kit.Notification{
		Channel:  "jobs",
		Priority: 5,
		Target:   kit.ChatTarget{ChatID: 1, ThreadID: 2},
		Text:     "done",
	}
	k1 := dedupKey(base)
	if k1 == "" {
		t.Fatal("empty key for channel notification")
	}
	if k2 := dedupKey(base); k2 != k1 {
		t.Fatalf("key not stable: %q vs %q", k1, k2)
	}

	other := base
	other.Text = "failed"
	if dedupKey(other) == k1 {
		t.Fatal("different text produced same key")
	}
	other = base
	other.Target.ChatID = 99
	if dedupKey(other) == k1 {
		t.Fatal("different target produced same key")
	}

	if dedupKey(kit.Notification{Text: "no channel"}) != "" {
		t.Fatal("channel-less notification got a dedup key")
	}
}

func TestRetryDelayBounds(t *testing.T) {
	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}

	for attempt := 1; attempt <= 8; attempt++ {
		d := retryDelay(cfg, attempt)
		// jitter is 0.7..1.3 around the backoff value, capped at RetryMaxDelay
		if d < 0 {
			t.Fatalf("attempt %d: negative delay %v", attempt, d)
		}
		if d > time.Duration(1.3*float64(time.Second))+time.Millisecond {
			t.Fatalf("attempt %d: delay %v exceeds jittered cap", attempt, d)
		}
	}

	// first attempt stays near the base
	if d := retryDelay(cfg, 1); d > 200*time.Millisecond {
		t.Fatalf("attempt 1 delay %v too large", d)
	}
}

func TestDedupAllowWindow(t *testing.T) {
	s := New(Config{Enabled: true}, nil, logx.Nop(), nil, nil)

	key := "k1"
	if !s.dedupAllow(context.Background(), key, 50*time.Millisecond, 100, false, nil, nil) {
		t.Fatal("first notification suppressed")
	}
	if s.dedupAllow(context.Background(), key, 50*time.Millisecond, 100, false, nil, nil) {
		t.Fatal("duplicate inside window allowed")
	}

	time.Sleep(60 * time.Millisecond)
	if !s.dedupAllow(context.Background(), key, 50*time.Millisecond, 100, false, nil, nil) {
		t.Fatal("notification suppressed after window expiry")
	}
}

func TestDedupAllowCap(t *testing.T) {
	s := New(Config{Enabled: true}, nil, logx.Nop(), nil, nil)

	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		if !s.dedupAllow(context.Background(), key, time.Minute, 3, false, nil, nil) {
			t.Fatalf("key %q suppressed on first use", key)
		}
	}

	s.dmu.Lock()
	n := len(s.dedup)
	s.dmu.Unlock()
	if n > 3 {
		t.Fatalf("dedup entries = %d, want <= 3", n)
	}
}
