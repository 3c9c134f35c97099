package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("cache.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindCacheUpdated, Timestamp: time.Now(), Payload: CacheUpdate{ConversationID: "c1"}})

	select {
	case evt := <-ch:
		if evt.Kind != KindCacheUpdated {
			t.Errorf("got kind %q, want %q", evt.Kind, KindCacheUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("send.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindListUpdated})
	b.Publish(Event{Kind: KindSendFailed})

	select {
	case evt := <-ch:
		if evt.Kind != KindSendFailed {
			t.Errorf("got kind %q, want %q", evt.Kind, KindSendFailed)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("cache.", 10)
	unsub()

	b.Publish(Event{Kind: KindCacheUpdated})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFullSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("cache.", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		b.Publish(Event{Kind: KindCacheUpdated})
		b.Publish(Event{Kind: KindCacheUpdated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on full subscriber")
	}
}
