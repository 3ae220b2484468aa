package eventstream

import (
	"testing"
	"time"

	"party-beacon/internal/notify"
)

func TestBufferOrderAndReplay(t *testing.T) {
	buf := NewBuffer(10)
	ev1 := buf.Append(notify.Event{Type: notify.EventReservationAdded, SessionID: "s1", At: time.Now()})
	ev2 := buf.Append(notify.Event{Type: notify.EventPlayerRemoved, SessionID: "s1", At: time.Now()})
	ev3 := buf.Append(notify.Event{Type: notify.EventReservationsFull, SessionID: "s1", At: time.Now()})

	if ev1.EventID != "1" || ev2.EventID != "2" || ev3.EventID != "3" {
		t.Fatalf("unexpected event ids: %s %s %s", ev1.EventID, ev2.EventID, ev3.EventID)
	}
	replay := buf.ReplayAfter("1")
	if len(replay.Events) != 2 || replay.Events[0].EventID != "2" || replay.Gap {
		t.Fatalf("unexpected replay: %+v", replay)
	}
	if got := buf.ReplayAfter("3"); len(got.Events) != 0 || got.Gap {
		t.Fatalf("replay after newest = %+v, want empty", got)
	}
	if got := buf.ReplayAfter("garbage"); len(got.Events) != 3 {
		t.Fatalf("replay with bad id = %d events, want 3", len(got.Events))
	}
}

func TestBufferTrimsAndReportsGap(t *testing.T) {
	buf := NewBuffer(2)
	for i := 0; i < 5; i++ {
		buf.Notify(notify.Event{Type: notify.EventReservationAdded})
	}
	replay := buf.ReplayAfter("")
	if len(replay.Events) != 2 || replay.Events[0].EventID != "4" || replay.Gap {
		t.Fatalf("replay = %+v, want ids 4,5", replay)
	}
	if got := buf.ReplayAfter("2"); !got.Gap || len(got.Events) != 2 {
		t.Fatalf("replay after evicted id = %+v, want gap", got)
	}
	if got := buf.ReplayAfter("3"); got.Gap {
		t.Fatalf("replay after 3 = %+v, want no gap", got)
	}
}

func TestSubscriptionFiltersTypes(t *testing.T) {
	buf := NewBuffer(4)
	sub := buf.Subscribe(notify.EventReservationsFull)
	defer buf.Unsubscribe(sub)

	buf.Notify(notify.Event{Type: notify.EventReservationAdded})
	buf.Notify(notify.Event{Type: notify.EventReservationsFull})
	select {
	case ev := <-sub.C:
		if ev.Event != notify.EventReservationsFull || ev.Seq() != 2 {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestBufferCloseEndsSubscribers(t *testing.T) {
	buf := NewBuffer(4)
	sub := buf.Subscribe()
	buf.Close()
	if _, ok := <-sub.C; ok {
		t.Fatal("subscriber channel should be closed")
	}
	buf.Unsubscribe(sub)
	if ev := buf.Append(notify.Event{Type: notify.EventReservationsFull}); ev.EventID != "" {
		t.Fatalf("append after close = %+v", ev)
	}
}
