package eventbus

import "testing"

func TestPublishFanOut(t *testing.T) {
	bus := New()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish("hello")

	if got := <-a; got != "hello" {
		t.Errorf("subscriber a got %v", got)
	}
	if got := <-b; got != "hello" {
		t.Errorf("subscriber b got %v", got)
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()

	// Overflow the subscriber buffer. Publish must not block.
	for i := 0; i < 32; i++ {
		bus.Publish(i)
	}
	if got := <-sub; got != 0 {
		t.Errorf("first buffered event = %v, want 0", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	if _, ok := <-sub; ok {
		t.Error("channel must be closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	bus.Publish("x")
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Close()
	bus.Close()

	if _, ok := <-sub; ok {
		t.Error("channel must be closed after Close")
	}
	bus.Publish("dropped")

	// A late subscriber gets an already-closed channel.
	late := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after close must return a closed channel")
	}
}
