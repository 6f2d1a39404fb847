package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/accueilpro/accueilpro/pkg/events"
)

type fakeBus struct {
	subject string
	handler func(msg *events.Message)
}

func (f *fakeBus) Subscribe(subject string, handler func(msg *events.Message)) error {
	f.subject = subject
	f.handler = handler
	return nil
}

func (f *fakeBus) QueueSubscribe(subject, _ string, handler func(msg *events.Message)) error {
	return f.Subscribe(subject, handler)
}

func (f *fakeBus) Close() error { return nil }

func TestHubListenInvalidatesThenBroadcasts(t *testing.T) {
	hub := NewHub()
	bus := &fakeBus{}
	invalidated := 0
	if err := hub.Listen(bus, func(context.Context) { invalidated++ }); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if bus.subject != events.VisitorsAll {
		t.Errorf("subscribed to %q, want %q", bus.subject, events.VisitorsAll)
	}

	ch, cancel := hub.Subscribe()
	defer cancel()

	payload, _ := json.Marshal(events.ChangeEvent{Type: events.ChangeInsert, Table: "visitors", RecordID: "r1"})
	bus.handler(&events.Message{Subject: events.VisitorsInserted, Data: payload})
	bus.handler(&events.Message{Subject: events.VisitorsInserted, Data: []byte("garbage")})

	select {
	case ev := <-ch:
		if ev.RecordID != "r1" {
			t.Errorf("got record %q, want r1", ev.RecordID)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	if invalidated != 1 {
		t.Errorf("invalidated %d times, want 1", invalidated)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	slow, cancelSlow := hub.Subscribe()
	defer cancelSlow()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Broadcast(events.ChangeEvent{Type: events.ChangeUpdate})
	}
	if got := len(slow); got != subscriberBuffer {
		t.Errorf("buffered %d events, want %d", got, subscriberBuffer)
	}
}

func TestHubUnsubscribeAndRun(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe()
	ch2, _ := hub.Subscribe()

	cancel1()
	cancel1()
	if _, ok := <-ch1; ok {
		t.Error("ch1 should be closed after cancel")
	}
	if hub.Subscribers() != 1 {
		t.Errorf("got %d subscribers, want 1", hub.Subscribers())
	}

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()
	stop()
	<-done

	if _, ok := <-ch2; ok {
		t.Error("ch2 should be closed when the hub stops")
	}
	ch3, cancel3 := hub.Subscribe()
	cancel3()
	if _, ok := <-ch3; ok {
		t.Error("subscribing after stop should yield a closed channel")
	}
}
