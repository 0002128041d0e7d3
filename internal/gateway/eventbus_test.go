package gateway

import (
	"testing"
	"time"

	"github.com/clawinfra/trustcore/internal/approval"
)

func TestEventBusDeliversToSubscriberOfSameSession(t *testing.T) {
	bus := NewEventBus(nil)
	sub := bus.Subscribe("session-a")
	defer bus.Unsubscribe(sub)

	bus.Emitter()(approval.Event{
		SessionKey: "session-a",
		Data:       approval.EventData{Type: approval.EventApprovalRequest, RequestID: "r1"},
	})

	select {
	case ev := <-sub.Events():
		if ev.Data.RequestID != "r1" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestEventBusDoesNotCrossSessions(t *testing.T) {
	bus := NewEventBus(nil)
	subA := bus.Subscribe("session-a")
	subB := bus.Subscribe("session-b")
	defer bus.Unsubscribe(subA)
	defer bus.Unsubscribe(subB)

	bus.Emitter()(approval.Event{
		SessionKey: "session-a",
		Data:       approval.EventData{RequestID: "only-a"},
	})

	select {
	case ev := <-subA.Events():
		if ev.Data.RequestID != "only-a" {
			t.Errorf("unexpected event on A: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event on subA")
	}

	select {
	case ev := <-subB.Events():
		t.Fatalf("subB should not receive session-a's event, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus(nil)
	sub := bus.Subscribe("session-a")
	bus.Unsubscribe(sub)

	_, ok := <-sub.Events()
	if ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}

func TestEventBusDropsWhenBufferFull(t *testing.T) {
	bus := NewEventBus(nil)
	sub := bus.Subscribe("session-a")
	defer bus.Unsubscribe(sub)

	for i := 0; i < eventBufferSize+5; i++ {
		bus.Emitter()(approval.Event{SessionKey: "session-a"})
	}

	count := 0
drain:
	for {
		select {
		case <-sub.Events():
			count++
		default:
			break drain
		}
	}
	if count > eventBufferSize {
		t.Errorf("expected at most %d buffered events, got %d", eventBufferSize, count)
	}
}
