package events

import (
	"testing"
	"time"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBus(4)
	defer b.Close()

	a := b.Subscribe("a")
	c := b.Subscribe("c")

	b.Publish(Event{Type: TypeMotionDetected})

	select {
	case ev := <-a:
		if ev.Type != TypeMotionDetected {
			t.Errorf("subscriber a got type %q, want %q", ev.Type, TypeMotionDetected)
		}
		if ev.Timestamp.IsZero() {
			t.Error("publish should stamp a zero timestamp")
		}
	default:
		t.Error("subscriber a did not receive the event")
	}

	select {
	case <-c:
	default:
		t.Error("subscriber c did not receive the event")
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	b := NewBus(2)
	defer b.Close()

	b.Subscribe("slow") // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			b.Publish(Event{Type: TypeImageCaptured, Payload: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if got := b.Dropped("slow"); got != 48 {
		t.Errorf("Dropped(slow) = %d, want 48", got)
	}
}

func TestBus_DropsOnlyForFullSubscriber(t *testing.T) {
	b := NewBus(2)
	defer b.Close()

	slow := b.Subscribe("slow")
	fast := b.Subscribe("fast")

	received := 0
	for i := 0; i < 10; i++ {
		b.Publish(Event{Type: TypeDetectionCompleted})
		select {
		case <-fast:
			received++
		default:
		}
	}

	if received != 10 {
		t.Errorf("fast subscriber received %d events, want 10", received)
	}
	if got := b.Dropped("fast"); got != 0 {
		t.Errorf("Dropped(fast) = %d, want 0", got)
	}
	if got := b.Dropped("slow"); got != 8 {
		t.Errorf("Dropped(slow) = %d, want 8", got)
	}

	// Drain what the slow channel did keep: the first two.
	if len(slow) != 2 {
		t.Errorf("slow channel holds %d events, want 2", len(slow))
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBus(4)
	defer b.Close()

	ch := b.Subscribe("a")
	b.Unsubscribe("a")

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: TypeErrorOccurred, Payload: "gone"})
}

func TestBus_ResubscribeReplacesChannel(t *testing.T) {
	b := NewBus(4)
	defer b.Close()

	first := b.Subscribe("a")
	second := b.Subscribe("a")

	if _, ok := <-first; ok {
		t.Error("first channel should be closed after resubscribe")
	}

	b.Publish(Event{Type: TypeMotionStateChanged})
	select {
	case <-second:
	default:
		t.Error("second channel did not receive the event")
	}
}

func TestBus_CloseClosesAll(t *testing.T) {
	b := NewBus(4)
	a := b.Subscribe("a")
	c := b.Subscribe("c")

	b.Close()

	if _, ok := <-a; ok {
		t.Error("subscriber a channel should be closed")
	}
	if _, ok := <-c; ok {
		t.Error("subscriber c channel should be closed")
	}
}
