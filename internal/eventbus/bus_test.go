package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: "test.event", Data: 42})

	select {
	case e := <-ch:
		if e.Type != "test.event" || e.Data != 42 {
			t.Fatalf("event = %+v", e)
		}
		if e.Time.IsZero() {
			t.Fatal("publish did not stamp time")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "first"})
	b.Publish(Event{Type: "second"}) // dropped, buffer full

	e := <-ch
	if e.Type != "first" {
		t.Fatalf("event = %+v", e)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected second event: %+v", e)
	default:
	}
}

func TestPublishAfterUnsubscribe(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	unsub() // idempotent

	// must not panic on the closed channel
	b.Publish(Event{Type: "late"})
}

func TestFanout(t *testing.T) {
	b := New()
	ch1, u1 := b.Subscribe(1)
	ch2, u2 := b.Subscribe(1)
	defer u1()
	defer u2()

	b.Publish(Event{Type: "both"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != "both" {
				t.Fatalf("subscriber %d event = %+v", i, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d missed event", i)
		}
	}
}
