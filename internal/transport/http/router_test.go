package httptransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"party-beacon/internal/beacon"
	"party-beacon/internal/client"
	"party-beacon/internal/config"
	"party-beacon/internal/eventstream"
	"party-beacon/internal/host"
	"party-beacon/internal/ledger"
	"party-beacon/internal/registry"
)

const testAdminKey = "admin-secret"

func TestHealthWithoutStore(t *testing.T) {
	srv := newTestServer(t, "")
	res, body := do(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if res.StatusCode != http.StatusOK || body["db"] != "disabled" {
		t.Fatalf("healthz = %d %v", res.StatusCode, body)
	}
}

func TestAdminRequiresKey(t *testing.T) {
	srv := newTestServer(t, testAdminKey)
	res, body := do(t, http.MethodGet, srv.URL+"/api/reservations", "", nil)
	if res.StatusCode != http.StatusUnauthorized || body["error"] != "unauthorized" {
		t.Fatalf("no key = %d %v", res.StatusCode, body)
	}
	res, _ = do(t, http.MethodGet, srv.URL+"/api/reservations", "wrong", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key status = %d", res.StatusCode)
	}
	res, _ = do(t, http.MethodGet, srv.URL+"/api/reservations", testAdminKey, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("valid key status = %d", res.StatusCode)
	}
}

func TestAdminReservationLifecycle(t *testing.T) {
	srv := newTestServer(t, testAdminKey)
	url := srv.URL + "/api"

	res, body := do(t, http.MethodPost, url+"/reservations", testAdminKey, map[string]any{
		"leader_id": "L1",
		"team":      -1,
		"players":   []map[string]any{{"player_id": "L1", "validation": "tok-L1"}, {"player_id": "P2", "validation": "tok-P2"}},
	})
	if res.StatusCode != http.StatusOK || body["outcome"] != "accepted" {
		t.Fatalf("add = %d %v", res.StatusCode, body)
	}
	res, body = do(t, http.MethodPost, url+"/reservations", testAdminKey, map[string]any{
		"leader_id": "L3",
		"players":   []map[string]any{{"player_id": "L3", "validation": "tok-L3"}, {"player_id": "P2", "validation": "tok-P2"}},
	})
	if res.StatusCode != http.StatusConflict || body["error"] != "contains_existing_players" {
		t.Fatalf("conflicting add = %d %v", res.StatusCode, body)
	}

	res, body = do(t, http.MethodGet, url+"/session", testAdminKey, nil)
	if res.StatusCode != http.StatusOK || body["consumed"] != float64(2) || body["session_id"] != "s1" {
		t.Fatalf("session = %d %v", res.StatusCode, body)
	}

	res, body = do(t, http.MethodPost, url+"/players/P2/leader", testAdminKey, map[string]any{"leader_id": "P2"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("leader update = %d %v", res.StatusCode, body)
	}
	res, body = do(t, http.MethodPost, url+"/players/ghost/leader", testAdminKey, map[string]any{"leader_id": "L1"})
	if res.StatusCode != http.StatusConflict || body["error"] != "leader_update_refused" {
		t.Fatalf("ghost leader update = %d %v", res.StatusCode, body)
	}

	res, _ = do(t, http.MethodDelete, url+"/players/P2", testAdminKey, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("remove player status = %d", res.StatusCode)
	}
	res, body = do(t, http.MethodDelete, url+"/players/P2", testAdminKey, nil)
	if res.StatusCode != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("second remove player = %d %v", res.StatusCode, body)
	}

	res, _ = do(t, http.MethodDelete, url+"/reservations/L1", testAdminKey, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("remove reservation status = %d", res.StatusCode)
	}
	res, body = do(t, http.MethodGet, url+"/reservations", testAdminKey, nil)
	if items, _ := body["items"].([]any); res.StatusCode != http.StatusOK || len(items) != 0 {
		t.Fatalf("reservations = %d %v", res.StatusCode, body)
	}
}

func TestEventFeedReplaysAdminChanges(t *testing.T) {
	srv := newTestServer(t, testAdminKey)
	res, _ := do(t, http.MethodPost, srv.URL+"/api/reservations", testAdminKey, map[string]any{
		"leader_id": "L1",
		"players":   []map[string]any{{"player_id": "L1", "validation": "tok-L1"}},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("add status = %d", res.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open event feed: %v", err)
	}
	defer resp.Body.Close()
	rd := bufio.NewReader(resp.Body)
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			t.Fatalf("read feed: %v", err)
		}
		if strings.HasPrefix(line, "event: ") {
			if got := strings.TrimSpace(strings.TrimPrefix(line, "event: ")); got != "reservation_added" {
				t.Fatalf("first event = %q, want reservation_added", got)
			}
			return
		}
	}
}

func TestPauseValidation(t *testing.T) {
	srv := newTestServer(t, "")
	res, body := do(t, http.MethodPost, srv.URL+"/api/pause", "", map[string]any{})
	if res.StatusCode != http.StatusBadRequest || body["error"] != "invalid_request" {
		t.Fatalf("empty pause = %d %v", res.StatusCode, body)
	}
	res, body = do(t, http.MethodPost, srv.URL+"/api/pause", "", map[string]any{"paused": true})
	if res.StatusCode != http.StatusOK || body["paused"] != true {
		t.Fatalf("pause = %d %v", res.StatusCode, body)
	}
}

func TestBeaconRouteServesClients(t *testing.T) {
	srv := newTestServer(t, testAdminKey)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/beacon"
	tr, err := client.DialWebsocket(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("DialWebsocket error = %v", err)
	}
	handle := client.NewHandle(client.Config{SessionID: "s1"}, tr)
	go handle.Run(ctx)

	party := beacon.PartyReservation{LeaderID: "L1", TeamNum: beacon.NoTeam, Players: []beacon.PlayerReservation{{PlayerID: "L1", ValidationStr: "tok-L1"}}}
	if err := handle.RequestReservation(party); err != nil {
		t.Fatalf("RequestReservation error = %v", err)
	}
	for {
		select {
		case ev := <-handle.Events():
			if ev.Kind != client.EventResult {
				continue
			}
			if ev.Outcome != beacon.OutcomeAccepted {
				t.Fatalf("outcome = %v, want accepted", ev.Outcome)
			}
			return
		case <-ctx.Done():
			t.Fatal("timed out waiting for reservation result")
		}
	}
}

func TestOutcomeStatus(t *testing.T) {
	cases := map[beacon.Outcome]int{
		beacon.OutcomeAccepted:             http.StatusOK,
		beacon.OutcomeNotFound:             http.StatusNotFound,
		beacon.OutcomeDeniedBanned:         http.StatusForbidden,
		beacon.OutcomeIncorrectPlayerCount: http.StatusBadRequest,
		beacon.OutcomeSessionFull:          http.StatusConflict,
		beacon.OutcomeGeneralError:         http.StatusInternalServerError,
	}
	for o, want := range cases {
		if got := outcomeStatus(o); got != want {
			t.Fatalf("outcomeStatus(%v) = %d, want %d", o, got, want)
		}
	}
}

func newTestServer(t *testing.T, adminKey string) *httptest.Server {
	t.Helper()
	l, err := ledger.New(ledger.Config{TeamCount: 2, TeamSize: 4, Strict: true})
	if err != nil {
		t.Fatalf("ledger.New error = %v", err)
	}
	events := eventstream.NewBuffer(16)
	h := host.New(host.Config{}, l, registry.NewMemory("s1", "owner"), host.WithNotifier(events))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(NewRouter(h, nil, events, config.HostConfig{AdminAPIKey: adminKey}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv
}

func do(t *testing.T, method, url, adminKey string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if adminKey != "" {
		req.Header.Set("Authorization", "Bearer "+adminKey)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}
