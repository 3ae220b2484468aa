package eventstream

import (
	"net/http"
	"strings"
	"time"

	"party-beacon/internal/notify"
)

var pingInterval = 15 * time.Second

// Handler streams ledger events as server-sent events, replaying anything
// after Last-Event-ID first. ?events=a,b* limits the feed to those types.
func Handler(buf *Buffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		types := parseTypes(r.URL.Query().Get("events"))
		SetSSEHeaders(w)
		w.WriteHeader(http.StatusOK)

		// Subscribe before replaying so nothing appended in between is lost;
		// sequences already replayed are skipped below.
		sub := buf.Subscribe(types...)
		defer buf.Unsubscribe(sub)

		replay := buf.ReplayAfter(lastEventID(r))
		if replay.Gap {
			oldest := ""
			if len(replay.Events) > 0 {
				oldest = replay.Events[0].EventID
			}
			if err := WriteSSE(w, "", "reset", map[string]string{"oldest_event_id": oldest}); err != nil {
				return
			}
		}
		lastSent := int64(0)
		for _, ev := range replay.Events {
			lastSent = ev.Seq()
			if !notify.EventAllowed(types, ev.Event) {
				continue
			}
			if err := WriteSSE(w, ev.EventID, ev.Event, ev); err != nil {
				return
			}
		}
		flusher.Flush()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if ev.Seq() <= lastSent {
					continue
				}
				if err := WriteSSE(w, ev.EventID, ev.Event, ev); err != nil {
					return
				}
				lastSent = ev.Seq()
				flusher.Flush()
			case <-ticker.C:
				if _, err := w.Write([]byte(": ping\n\n")); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// lastEventID accepts the header or, for EventSource polyfills that cannot
// set headers, the last_event_id query parameter.
func lastEventID(r *http.Request) string {
	if id := r.Header.Get("Last-Event-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("last_event_id")
}

func parseTypes(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
