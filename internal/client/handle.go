package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"party-beacon/internal/beacon"
)

var (
	ErrRequestPending = errors.New("request_pending")
	ErrNoRequest      = errors.New("no_request")
	ErrClosed         = errors.New("handle_closed")
)

const (
	defaultCancelTimeout = 5 * time.Second
	eventBuffer          = 32
)

// Transport carries beacon messages to one host.
type Transport interface {
	Send(ctx context.Context, req beacon.Request) error
	Recv(ctx context.Context) (beacon.Response, error)
	Close() error
}

type EventKind int

const (
	// EventResult ends the pending request.
	EventResult EventKind = iota + 1
	EventCountChanged
	EventFull
)

type Event struct {
	Kind EventKind
	// Request is the operation that ended; RequestCancel when a cancel
	// produced the outcome.
	Request   beacon.RequestKind
	Outcome   beacon.Outcome
	Remaining int
	// Assumed is set when the cancel failsafe fired without an answer.
	Assumed bool
}

type Config struct {
	SessionID     string
	CancelTimeout time.Duration
}

// Handle drives at most one reservation request at a time against a host.
type Handle struct {
	cfg    Config
	tr     Transport
	events chan Event
	wake   chan struct{}
	flush  chan struct{}
	done   chan struct{}

	mu              sync.Mutex
	state           beacon.RequestKind
	requestID       string
	leader          beacon.PlayerID
	sent            bool
	canceling       bool
	cancelRequestID string
	cancelDeadline  time.Time
	queue           []beacon.Request
	closed          bool
}

func NewHandle(cfg Config, tr Transport) *Handle {
	if cfg.CancelTimeout <= 0 {
		cfg.CancelTimeout = defaultCancelTimeout
	}
	return &Handle{
		cfg:    cfg,
		tr:     tr,
		events: make(chan Event, eventBuffer),
		wake:   make(chan struct{}, 1),
		flush:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (h *Handle) Events() <-chan Event {
	return h.events
}

// Pending reports the in-flight request kind, RequestNone when idle.
func (h *Handle) Pending() beacon.RequestKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canceling {
		return beacon.RequestCancel
	}
	return h.state
}

func (h *Handle) RequestReservation(party beacon.PartyReservation) error {
	return h.begin(beacon.RequestReserve, party)
}

func (h *Handle) RequestReservationUpdate(party beacon.PartyReservation) error {
	return h.begin(beacon.RequestUpdate, party)
}

func (h *Handle) begin(kind beacon.RequestKind, party beacon.PartyReservation) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.state != beacon.RequestNone {
		h.mu.Unlock()
		return ErrRequestPending
	}
	h.state = kind
	h.requestID = beacon.NewID()
	h.leader = party.LeaderID
	h.sent = false
	h.canceling = false
	h.queue = append(h.queue, beacon.Request{
		Kind:        kind,
		RequestID:   h.requestID,
		SessionID:   h.cfg.SessionID,
		Reservation: party.Clone(),
	})
	h.mu.Unlock()
	signal(h.flush)
	return nil
}

// CancelReservation abandons the pending request. A request that never left
// the handle ends at once with canceled; otherwise a cancel is sent and the
// failsafe deadline is armed.
func (h *Handle) CancelReservation() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.state == beacon.RequestNone {
		h.mu.Unlock()
		return ErrNoRequest
	}
	if h.canceling {
		h.mu.Unlock()
		return nil
	}
	if !h.sent {
		h.dropQueued(h.requestID)
		h.reset()
		h.mu.Unlock()
		h.emit(Event{Kind: EventResult, Request: beacon.RequestCancel, Outcome: beacon.OutcomeCanceled})
		return nil
	}
	h.canceling = true
	h.cancelRequestID = beacon.NewID()
	h.cancelDeadline = time.Now().Add(h.cfg.CancelTimeout)
	h.queue = append(h.queue, beacon.Request{
		Kind:      beacon.RequestCancel,
		RequestID: h.cancelRequestID,
		LeaderID:  h.leader,
	})
	h.mu.Unlock()
	signal(h.flush)
	signal(h.wake)
	return nil
}

// Run pumps the transport until ctx is done or the transport fails. A
// request still pending at that point ends with general_error.
func (h *Handle) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(h.done)

	errc := make(chan error, 2)
	go func() { errc <- h.writeLoop(ctx) }()
	go func() { errc <- h.readLoop(ctx) }()

	for {
		h.mu.Lock()
		deadline := time.Time{}
		if h.canceling {
			deadline = h.cancelDeadline
		}
		h.mu.Unlock()

		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		if !deadline.IsZero() {
			timer = time.NewTimer(time.Until(deadline))
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			h.shutdown(ctx.Err())
			return ctx.Err()
		case err := <-errc:
			stopTimer(timer)
			h.shutdown(err)
			return err
		case <-h.wake:
		case <-timerC:
			h.expireCancel()
		}
		stopTimer(timer)
	}
}

func (h *Handle) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.flush:
		}
		for {
			h.mu.Lock()
			if len(h.queue) == 0 {
				h.mu.Unlock()
				break
			}
			req := h.queue[0]
			h.queue = h.queue[1:]
			if req.Kind != beacon.RequestCancel && req.RequestID == h.requestID {
				h.sent = true
			}
			h.mu.Unlock()
			if err := h.tr.Send(ctx, req); err != nil {
				return err
			}
		}
	}
}

func (h *Handle) readLoop(ctx context.Context) error {
	for {
		res, err := h.tr.Recv(ctx)
		if err != nil {
			return err
		}
		switch res.Kind {
		case beacon.ResponseCountChanged:
			h.push(Event{Kind: EventCountChanged, Remaining: res.Remaining})
		case beacon.ResponseFull:
			h.push(Event{Kind: EventFull})
		case beacon.ResponseReservation:
			h.finishIf(func() bool {
				return !h.canceling && res.RequestID == h.requestID
			}, Event{Kind: EventResult, Outcome: res.Outcome})
		case beacon.ResponseCancel:
			h.finishIf(func() bool {
				return h.canceling && res.RequestID == h.cancelRequestID
			}, Event{Kind: EventResult, Request: beacon.RequestCancel, Outcome: res.Outcome})
		}
	}
}

// finishIf ends the pending request with ev when match holds; anything else
// is stale and discarded.
func (h *Handle) finishIf(match func() bool, ev Event) {
	h.mu.Lock()
	if h.state == beacon.RequestNone || !match() {
		h.mu.Unlock()
		log.Debug().Str("outcome", ev.Outcome.String()).Msg("discarding stale beacon response")
		return
	}
	if ev.Request == beacon.RequestNone {
		ev.Request = h.state
	}
	h.reset()
	h.mu.Unlock()
	h.emit(ev)
}

func (h *Handle) expireCancel() {
	h.mu.Lock()
	if !h.canceling || time.Now().Before(h.cancelDeadline) {
		h.mu.Unlock()
		return
	}
	h.reset()
	h.mu.Unlock()
	log.Warn().Msg("beacon cancel unacknowledged, assuming canceled")
	h.emit(Event{Kind: EventResult, Request: beacon.RequestCancel, Outcome: beacon.OutcomeCanceled, Assumed: true})
}

func (h *Handle) shutdown(cause error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	pending := h.state
	if h.canceling {
		pending = beacon.RequestCancel
	}
	h.reset()
	h.queue = nil
	h.mu.Unlock()

	_ = h.tr.Close()
	if pending != beacon.RequestNone {
		log.Warn().Err(cause).Str("request", pending.String()).Msg("beacon transport lost with request pending")
		h.push(Event{Kind: EventResult, Request: pending, Outcome: beacon.OutcomeGeneralError})
	}
}

// reset returns to idle. Caller holds mu.
func (h *Handle) reset() {
	h.state = beacon.RequestNone
	h.requestID = ""
	h.sent = false
	h.canceling = false
	h.cancelRequestID = ""
	h.cancelDeadline = time.Time{}
}

// dropQueued removes an unsent request. Caller holds mu.
func (h *Handle) dropQueued(requestID string) {
	kept := h.queue[:0]
	for _, req := range h.queue {
		if req.RequestID != requestID {
			kept = append(kept, req)
		}
	}
	h.queue = kept
}

// emit delivers a terminal result, waiting for the consumer if needed.
func (h *Handle) emit(ev Event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// push delivers without blocking.
func (h *Handle) push(ev Event) {
	select {
	case h.events <- ev:
	default:
		log.Warn().Int("kind", int(ev.Kind)).Msg("beacon event buffer full, dropping event")
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
