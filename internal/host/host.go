package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"party-beacon/internal/beacon"
	"party-beacon/internal/ledger"
	"party-beacon/internal/notify"
	"party-beacon/internal/registry"
)

var ErrStopped = errors.New("host_stopped")

const inboxSize = 256

type Config struct {
	SweepInterval  time.Duration
	TravelTimeout  time.Duration
	SessionTimeout time.Duration
}

// Host owns the reservation ledger for one hosted session. Every request,
// admin call and sweep result is a message on the inbox, handled to
// completion by the Run goroutine.
type Host struct {
	cfg      Config
	registry registry.SessionRegistry
	notifier notify.Sink
	inbox    chan msg
	done     chan struct{}
	runOnce  sync.Once

	// owned by the Run goroutine
	ledger      *ledger.Ledger
	conns       map[string]chan<- beacon.Response
	submitter   map[beacon.PlayerID]string
	lastOutcome map[requestKey]beacon.Outcome
	deferred    []requestMsg
	paused      bool
	consumed    int
}

type requestKey struct {
	connID string
	leader beacon.PlayerID
}

type Option func(*Host)

// WithNotifier forwards ledger changes to s from the host goroutine.
func WithNotifier(s notify.Sink) Option {
	return func(h *Host) { h.notifier = s }
}

func New(cfg Config, l *ledger.Ledger, reg registry.SessionRegistry, opts ...Option) *Host {
	h := &Host{
		cfg:         cfg,
		registry:    reg,
		inbox:       make(chan msg, inboxSize),
		done:        make(chan struct{}),
		ledger:      l,
		conns:       map[string]chan<- beacon.Response{},
		submitter:   map[beacon.PlayerID]string{},
		lastOutcome: map[requestKey]beacon.Outcome{},
		consumed:    l.NumConsumedReservations(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) SessionID() string {
	return h.registry.SessionID()
}

// Run processes the inbox until ctx is done. It must be called once.
func (h *Host) Run(ctx context.Context) {
	started := false
	h.runOnce.Do(func() { started = true })
	if !started {
		return
	}
	defer close(h.done)

	if h.cfg.SweepInterval > 0 {
		go h.runSweeper(ctx)
	}
	log.Info().
		Str("session_id", h.SessionID()).
		Int("capacity", h.ledger.Config().MaxReservations).
		Str("policy", h.ledger.Policy().Name()).
		Msg("beacon host started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("session_id", h.SessionID()).Msg("beacon host stopped")
			return
		case m := <-h.inbox:
			h.handle(m)
		}
	}
}

func (h *Host) handle(m msg) {
	switch m := m.(type) {
	case attachMsg:
		if _, ok := h.conns[m.connID]; !ok {
			metricConnectionsActive.Add(1)
		}
		h.conns[m.connID] = m.out
	case detachMsg:
		if _, ok := h.conns[m.connID]; ok {
			metricConnectionsActive.Add(-1)
		}
		delete(h.conns, m.connID)
		for k := range h.lastOutcome {
			if k.connID == m.connID {
				delete(h.lastOutcome, k)
			}
		}
		h.dropDeferred(m.connID)
	case requestMsg:
		h.handleRequest(m)
	case rosterMsg:
		h.sweep(m.roster, m.dt)
	case callMsg:
		m.fn()
		close(m.done)
	}
}

// Attach registers outbox as the push channel for connID. The host never
// blocks on it; pushes to a full outbox are dropped.
func (h *Host) Attach(connID string, outbox chan<- beacon.Response) error {
	return h.post(attachMsg{connID: connID, out: outbox})
}

func (h *Host) Detach(connID string) error {
	return h.post(detachMsg{connID: connID})
}

func (h *Host) Deliver(connID string, req beacon.Request) error {
	return h.post(requestMsg{connID: connID, req: req})
}

func (h *Host) post(m msg) error {
	select {
	case <-h.done:
		return ErrStopped
	default:
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

// call runs fn on the host goroutine and waits for it. On a non-nil error
// fn may still run later, so callers must not read what it captures.
func (h *Host) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case h.inbox <- callMsg{fn: fn, done: done}:
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) send(connID string, res beacon.Response) {
	out, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case out <- res:
	default:
		metricDroppedPushesTotal.Add(1)
		log.Warn().
			Str("conn_id", connID).
			Str("type", res.Kind.String()).
			Msg("beacon outbox full, dropping message")
	}
}

// publishCount pushes count changes to every attached connection.
func (h *Host) publishCount() {
	now := h.ledger.NumConsumedReservations()
	if now == h.consumed {
		return
	}
	wasFull := h.consumed >= h.ledger.Config().MaxReservations
	h.consumed = now
	remaining := h.ledger.RemainingReservations()
	for connID := range h.conns {
		h.send(connID, beacon.Response{Kind: beacon.ResponseCountChanged, Remaining: remaining})
	}
	if h.ledger.IsFull() && !wasFull {
		for connID := range h.conns {
			h.send(connID, beacon.Response{Kind: beacon.ResponseFull})
		}
		log.Info().Str("session_id", h.SessionID()).Msg("beacon reservations full")
		h.notify(notify.Event{Type: notify.EventReservationsFull})
	}
}

// notify fills in session-wide fields and hands ev to the notifier.
func (h *Host) notify(ev notify.Event) {
	if h.notifier == nil {
		return
	}
	ev.EventID = beacon.NewID()
	ev.SessionID = h.SessionID()
	ev.At = time.Now()
	ev.Remaining = h.ledger.RemainingReservations()
	ev.Capacity = h.ledger.Config().MaxReservations
	h.notifier.Notify(ev)
}

func (h *Host) notifyParty(kind string, leader beacon.PlayerID) {
	if h.notifier == nil {
		return
	}
	ev := notify.Event{Type: kind, LeaderID: leader, Team: beacon.NoTeam}
	if p, ok := h.ledger.Reservation(leader); ok {
		ev.Team = p.TeamNum
		ev.Players = p.PlayerIDs()
	}
	h.notify(ev)
}
