package eventbus

import (
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()

	b := New()
	ch1, un1 := b.Subscribe(4)
	ch2, un2 := b.Subscribe(4)
	defer un1()
	defer un2()

	b.Publish(Event{Type: "watch.subscribe", Data: "example.com"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != "watch.subscribe" {
				t.Fatalf("subscriber %d: type = %q, want watch.subscribe", i, e.Type)
			}
			if e.Time.IsZero() {
				t.Fatalf("subscriber %d: Publish did not stamp event time", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event", i)
		}
	}
}

func TestPublishKeepsCallerTime(t *testing.T) {
	t.Parallel()

	b := New()
	ch, un := b.Subscribe(1)
	defer un()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	b.Publish(Event{Type: "watch.alert", Time: at})

	e := <-ch
	if !e.Time.Equal(at) {
		t.Fatalf("event time = %v, want %v", e.Time, at)
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()

	b := New()
	ch, un := b.Subscribe(2)
	defer un()

	for i := 0; i < 10; i++ {
		b.Publish(Event{Type: "watch.report"})
	}

	// Buffer holds two; the rest must have been dropped without blocking.
	got := 0
	for {
		select {
		case <-ch:
			got++
		default:
			if got != 2 {
				t.Fatalf("buffered events = %d, want 2", got)
			}
			return
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	b := New()
	ch, un := b.Subscribe(1)
	un()
	un() // second call is a no-op

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic or deliver.
	b.Publish(Event{Type: "watch.alert"})
}

func TestSubscribeDefaultBuffer(t *testing.T) {
	t.Parallel()

	b := New()
	ch, un := b.Subscribe(0)
	defer un()

	b.Publish(Event{Type: "watch.subscribe"})
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("zero buffer request should still buffer events")
	}
}
