package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("upload.", 10)
	defer unsub()

	b.Emit(UploadStarted, "test")

	select {
	case evt := <-ch:
		if evt.Kind != UploadStarted {
			t.Errorf("got kind %q, want %s", evt.Kind, UploadStarted)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("net.", 10)
	defer unsub()

	b.Emit(SnapshotSaved, nil)
	b.Emit(NetOnline, nil)

	select {
	case evt := <-ch:
		if evt.Kind != NetOnline {
			t.Errorf("got kind %q, want %s", evt.Kind, NetOnline)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the snapshot event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("upload.", 10)
	unsub()

	b.Emit(UploadCompleted, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("queue.", 1)
	defer unsub()

	b.Emit(QueueChanged, 1)
	// Dropped, the buffer holds one event.
	b.Emit(QueueChanged, 2)

	evt := <-ch
	if evt.Payload != 1 {
		t.Errorf("got payload %v, want 1", evt.Payload)
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", b.Dropped())
	}
}

func TestPublishOnNilBus(t *testing.T) {
	var b *Bus
	b.Emit(QueueChanged, nil)
}
