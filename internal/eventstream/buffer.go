package eventstream

import (
	"sort"
	"strconv"
	"sync"

	"party-beacon/internal/notify"
)

type StreamEvent struct {
	EventID   string       `json:"event_id"`
	Event     string       `json:"event"`
	SessionID string       `json:"session_id"`
	ServerTS  int64        `json:"server_ts"`
	Data      notify.Event `json:"data"`

	seq int64
}

// Replay is the answer to a resume request. Gap is set when events after
// the client's last id were already evicted.
type Replay struct {
	Events []StreamEvent
	Gap    bool
}

// Subscription receives live events whose type passes Types.
type Subscription struct {
	C     chan StreamEvent
	types []string
}

// Buffer keeps the most recent ledger events for replay and fans them out to
// live subscribers. Slow subscribers miss events rather than block the host.
type Buffer struct {
	mu     sync.Mutex
	seq    int64
	max    int
	events []StreamEvent
	subs   map[*Subscription]struct{}
	closed bool
}

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 500
	}
	return &Buffer{max: max, subs: map[*Subscription]struct{}{}}
}

// Notify makes Buffer a notify.Sink.
func (b *Buffer) Notify(ev notify.Event) {
	b.Append(ev)
}

func (b *Buffer) Append(data notify.Event) StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return StreamEvent{}
	}
	b.seq++
	ev := StreamEvent{
		EventID:   strconv.FormatInt(b.seq, 10),
		Event:     data.Type,
		SessionID: data.SessionID,
		ServerTS:  data.At.UnixMilli(),
		Data:      data,
		seq:       b.seq,
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = append(b.events[:0:0], b.events[len(b.events)-b.max:]...)
	}
	for sub := range b.subs {
		if !notify.EventAllowed(sub.types, ev.Event) {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			metricStreamDroppedTotal.Add(1)
		}
	}
	return ev
}

// ReplayAfter returns buffered events newer than lastEventID. An empty or
// unparseable id replays everything kept.
func (b *Buffer) ReplayAfter(lastEventID string) Replay {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return Replay{}
	}
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if lastEventID == "" || err != nil {
		return Replay{Events: append([]StreamEvent(nil), b.events...)}
	}
	i := sort.Search(len(b.events), func(i int) bool { return b.events[i].seq > last })
	return Replay{
		Events: append([]StreamEvent(nil), b.events[i:]...),
		Gap:    last < b.events[0].seq-1,
	}
}

// Subscribe registers a live subscriber. With no types every event is sent.
func (b *Buffer) Subscribe(types ...string) *Subscription {
	sub := &Subscription{C: make(chan StreamEvent, 32), types: types}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.C)
		return sub
	}
	b.subs[sub] = struct{}{}
	metricStreamClientsActive.Add(1)
	return sub
}

func (b *Buffer) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.C)
		metricStreamClientsActive.Add(-1)
	}
}

// Close ends every subscription; later appends are ignored.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.C)
		delete(b.subs, sub)
		metricStreamClientsActive.Add(-1)
	}
}

func (ev StreamEvent) Seq() int64 {
	return ev.seq
}
