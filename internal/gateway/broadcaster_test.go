package gateway

import (
	"testing"

	"gend/pkg/types"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Publish(types.ReadyStatus("m"))
	for i, ch := range []<-chan types.Status{ch1, ch2} {
		select {
		case st := <-ch:
			if st.Status != types.StatusReady {
				t.Fatalf("subscriber %d got %+v", i, st)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestBroadcaster_CancelRemovesSubscriber(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.Subscribe()
	if b.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", b.Subscribers())
	}
	cancel()
	if b.Subscribers() != 0 {
		t.Fatalf("cancel did not remove subscriber")
	}
}

func TestBroadcaster_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	// Overfill the buffer; Publish must never block.
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(types.StartStatus())
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}

func TestBroadcaster_PublishWithNoSubscribers(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(types.StartStatus()) // must not panic
}
