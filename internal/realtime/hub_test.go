package realtime

import (
	"context"
	"testing"
)

func TestHubDeliversOnlyToOwner(t *testing.T) {
	hub := NewHub()
	alice, cancelAlice := hub.Subscribe("alice")
	defer cancelAlice()
	bob, cancelBob := hub.Subscribe("bob")
	defer cancelBob()

	hub.Publish(context.Background(), Event{UserID: "alice", Topic: TopicUsage})

	select {
	case event := <-alice:
		if event.Topic != TopicUsage {
			t.Fatalf("unexpected topic %q", event.Topic)
		}
	default:
		t.Fatal("expected alice to receive the event")
	}

	select {
	case event := <-bob:
		t.Fatalf("bob should not receive %+v", event)
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe("alice")
	if hub.SubscriberCount("alice") != 1 {
		t.Fatalf("expected one subscriber")
	}

	cancel()
	cancel()

	if _, ok := <-events; ok {
		t.Fatal("expected closed channel")
	}
	if hub.SubscriberCount("alice") != 0 {
		t.Fatalf("expected subscriber to be removed")
	}

	hub.Publish(context.Background(), Event{UserID: "alice", Topic: TopicImage})
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe("alice")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(context.Background(), Event{UserID: "alice", Topic: TopicUsage})
	}

	if len(events) != subscriberBuffer {
		t.Fatalf("expected buffer to hold %d events, got %d", subscriberBuffer, len(events))
	}
}

func TestHubIgnoresAnonymousEvents(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe("")
	defer cancel()

	hub.Publish(context.Background(), Event{Topic: TopicProfile})
	if len(events) != 0 {
		t.Fatal("events without user id must not be delivered")
	}

	var nop Notifier = Nop{}
	nop.Publish(context.Background(), Event{UserID: "alice"})
}
