package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"party-beacon/internal/beacon"
	"party-beacon/internal/client"
	"party-beacon/internal/host"
	"party-beacon/internal/ledger"
	"party-beacon/internal/registry"
)

func TestBeaconRoundTripOverWebsocket(t *testing.T) {
	url := startServer(t, ledger.Config{TeamCount: 1, TeamSize: 4})

	ctx := context.Background()
	tr, err := client.DialWebsocket(ctx, url, nil)
	if err != nil {
		t.Fatalf("DialWebsocket error = %v", err)
	}
	h := client.NewHandle(client.Config{SessionID: "s1"}, tr)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.Run(runCtx)

	party := beacon.PartyReservation{LeaderID: "L1", TeamNum: beacon.NoTeam, Players: []beacon.PlayerReservation{
		{PlayerID: "L1", ValidationStr: "token-L1"},
		{PlayerID: "P2", ValidationStr: "token-P2"},
	}}
	if err := h.RequestReservation(party); err != nil {
		t.Fatalf("RequestReservation error = %v", err)
	}

	var gotResult, gotCount bool
	deadline := time.After(3 * time.Second)
	for !gotResult || !gotCount {
		select {
		case ev := <-h.Events():
			switch ev.Kind {
			case client.EventResult:
				if ev.Outcome != beacon.OutcomeAccepted {
					t.Fatalf("outcome = %v, want accepted", ev.Outcome)
				}
				gotResult = true
			case client.EventCountChanged:
				if ev.Remaining != 2 {
					t.Fatalf("remaining = %d, want 2", ev.Remaining)
				}
				gotCount = true
			}
		case <-deadline:
			t.Fatalf("timed out: result=%v count=%v", gotResult, gotCount)
		}
	}
}

func TestMalformedFrameGetsMalformedOutcome(t *testing.T) {
	url := startServer(t, ledger.Config{TeamCount: 1, TeamSize: 4})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"spectate"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"reserve","request_id":"r9","reservation":"nope"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	res, err := beacon.DecodeResponse(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	if res.Kind != beacon.ResponseReservation || res.Outcome != beacon.OutcomeMalformedRequest || res.RequestID != "r9" {
		t.Fatalf("response = %+v, want malformed_request for r9", res)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"cancel_reserve","request_id":"c1","leader_id":7}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res, err = beacon.DecodeResponse(data); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	if res.Kind != beacon.ResponseCancel || res.RequestID != "c1" || res.Outcome != beacon.OutcomeMalformedRequest {
		t.Fatalf("response = %+v, want malformed cancel ack for c1", res)
	}
}

func startServer(t *testing.T, lcfg ledger.Config) string {
	t.Helper()
	lcfg.Strict = true
	l, err := ledger.New(lcfg)
	if err != nil {
		t.Fatalf("ledger.New error = %v", err)
	}
	h := host.New(host.Config{}, l, registry.NewMemory("s1", "owner"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(http.HandlerFunc(NewServer(h).HandleWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}
