package eventstream

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"party-beacon/internal/notify"
)

type parsedSSE struct {
	ID      string
	Event   string
	Data    string
	Comment string
}

func TestHandlerReplaysThenStreams(t *testing.T) {
	buf := NewBuffer(10)
	buf.Notify(notify.Event{Type: notify.EventReservationAdded, SessionID: "s1", LeaderID: "L1"})
	buf.Notify(notify.Event{Type: notify.EventReservationAdded, SessionID: "s1", LeaderID: "L2"})
	srv := httptest.NewServer(Handler(buf))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open sse: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	rd := bufio.NewReader(resp.Body)

	ev := readEventWithTimeout(t, rd, time.Second)
	if ev.ID != "2" || ev.Event != notify.EventReservationAdded {
		t.Fatalf("replayed = %+v, want id 2", ev)
	}
	var payload StreamEvent
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.Data.LeaderID != "L2" {
		t.Fatalf("payload = %+v", payload)
	}

	buf.Notify(notify.Event{Type: notify.EventReservationsFull, SessionID: "s1"})
	ev = readEventWithTimeout(t, rd, time.Second)
	if ev.ID != "3" || ev.Event != notify.EventReservationsFull {
		t.Fatalf("live = %+v, want id 3", ev)
	}
}

func TestHandlerHeartbeat(t *testing.T) {
	prev := pingInterval
	pingInterval = 20 * time.Millisecond
	defer func() { pingInterval = prev }()

	srv := httptest.NewServer(Handler(NewBuffer(4)))
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("open sse: %v", err)
	}
	defer resp.Body.Close()
	ev := readEventWithTimeout(t, bufio.NewReader(resp.Body), time.Second)
	if ev.Comment != "ping" || ev.Event != "" {
		t.Fatalf("heartbeat = %+v", ev)
	}
}

func TestHandlerSignalsGapAndFilters(t *testing.T) {
	buf := NewBuffer(2)
	buf.Notify(notify.Event{Type: notify.EventReservationAdded, LeaderID: "L1"})
	buf.Notify(notify.Event{Type: notify.EventPlayerExpired, PlayerID: "P2"})
	buf.Notify(notify.Event{Type: notify.EventReservationAdded, LeaderID: "L3"})
	buf.Notify(notify.Event{Type: notify.EventPlayerRemoved, PlayerID: "P4"})
	srv := httptest.NewServer(Handler(buf))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?events=player_*&last_event_id=1")
	if err != nil {
		t.Fatalf("open sse: %v", err)
	}
	defer resp.Body.Close()
	rd := bufio.NewReader(resp.Body)

	if ev := readEventWithTimeout(t, rd, time.Second); ev.Event != "reset" || !strings.Contains(ev.Data, `"3"`) {
		t.Fatalf("first frame = %+v, want reset from 3", ev)
	}
	if ev := readEventWithTimeout(t, rd, time.Second); ev.ID != "4" || ev.Event != notify.EventPlayerRemoved {
		t.Fatalf("replayed = %+v, want id 4 only", ev)
	}
	buf.Notify(notify.Event{Type: notify.EventReservationsFull})
	buf.Notify(notify.Event{Type: notify.EventPlayerExpired, PlayerID: "P5"})
	if ev := readEventWithTimeout(t, rd, time.Second); ev.ID != "6" {
		t.Fatalf("live = %+v, want id 6", ev)
	}
}

func readEventWithTimeout(t *testing.T, rd *bufio.Reader, timeout time.Duration) parsedSSE {
	t.Helper()
	ch := make(chan parsedSSE, 1)
	errCh := make(chan error, 1)
	go func() {
		ev, err := readEvent(rd)
		if err != nil {
			errCh <- err
			return
		}
		ch <- ev
	}()
	select {
	case ev := <-ch:
		return ev
	case err := <-errCh:
		t.Fatalf("read event: %v", err)
	case <-time.After(timeout):
		t.Fatal("timeout waiting for sse event")
	}
	return parsedSSE{}
}

func readEvent(rd *bufio.Reader) (parsedSSE, error) {
	ev := parsedSSE{}
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return ev, err
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return ev, nil
		}
		switch {
		case strings.HasPrefix(line, ": "):
			ev.Comment = strings.TrimPrefix(line, ": ")
		case strings.HasPrefix(line, "id: "):
			ev.ID = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			ev.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}
