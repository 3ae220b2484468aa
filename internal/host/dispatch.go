package host

import (
	"github.com/rs/zerolog/log"

	"party-beacon/internal/beacon"
	"party-beacon/internal/notify"
)

func (h *Host) handleRequest(m requestMsg) {
	metricRequestsTotal.Add(1)
	req := m.req
	switch req.Kind {
	case beacon.RequestCancel:
		h.handleCancel(m)
		return
	case beacon.RequestReserve, beacon.RequestUpdate:
	default:
		h.reply(m, beacon.ResponseReservation, beacon.OutcomeMalformedRequest)
		return
	}

	if req.SessionID != h.SessionID() {
		h.reply(m, beacon.ResponseReservation, beacon.OutcomeInvalidSession)
		return
	}
	if h.paused {
		metricDeferredTotal.Add(1)
		h.deferred = append(h.deferred, m)
		log.Debug().
			Str("conn_id", m.connID).
			Str("leader_id", string(req.Leader())).
			Int("deferred", len(h.deferred)).
			Msg("beacon request deferred")
		return
	}
	h.process(m)
}

func (h *Host) process(m requestMsg) {
	var outcome beacon.Outcome
	switch m.req.Kind {
	case beacon.RequestReserve:
		outcome = h.ledger.AddReservation(m.req.Reservation)
	case beacon.RequestUpdate:
		outcome = h.ledger.UpdateReservation(m.req.Reservation)
	default:
		outcome = beacon.OutcomeMalformedRequest
	}
	h.lastOutcome[requestKey{connID: m.connID, leader: m.req.Leader()}] = outcome
	if outcome == beacon.OutcomeAccepted || outcome == beacon.OutcomeDuplicate {
		for _, pr := range m.req.Reservation.Players {
			h.submitter[pr.PlayerID] = m.connID
		}
	}
	h.reply(m, beacon.ResponseReservation, outcome)
	if outcome == beacon.OutcomeAccepted {
		kind := notify.EventReservationAdded
		if m.req.Kind == beacon.RequestUpdate {
			kind = notify.EventReservationUpdated
		}
		h.notifyParty(kind, m.req.Leader())
	}
	h.publishCount()
}

// handleCancel answers a cancel. A still deferred request is dropped; a
// processed one is never undone and its outcome is echoed instead.
func (h *Host) handleCancel(m requestMsg) {
	metricCancelsTotal.Add(1)
	leader := m.req.LeaderID
	for i, d := range h.deferred {
		if d.connID == m.connID && d.req.Leader() == leader {
			h.deferred = append(h.deferred[:i], h.deferred[i+1:]...)
			h.reply(m, beacon.ResponseCancel, beacon.OutcomeCanceled)
			return
		}
	}
	key := requestKey{connID: m.connID, leader: leader}
	if outcome, ok := h.lastOutcome[key]; ok {
		delete(h.lastOutcome, key)
		h.reply(m, beacon.ResponseCancel, outcome)
		return
	}
	h.reply(m, beacon.ResponseCancel, beacon.OutcomeCanceled)
}

func (h *Host) reply(m requestMsg, kind beacon.ResponseKind, outcome beacon.Outcome) {
	metricOutcomesTotal.Add(outcome.String(), 1)
	if outcome != beacon.OutcomeAccepted {
		ev := log.Info()
		if outcome == beacon.OutcomeMalformedRequest || outcome == beacon.OutcomeInvalidSession {
			ev = log.Warn()
		}
		ev.
			Str("conn_id", m.connID).
			Str("request_id", m.req.RequestID).
			Str("request", m.req.Kind.String()).
			Str("outcome", outcome.String()).
			Str("session_id", m.req.SessionID).
			Str("leader_id", string(m.req.Leader())).
			Int("team", m.req.Reservation.TeamNum).
			Interface("players", m.req.Reservation.Players).
			Msg("beacon request not accepted")
	}
	h.send(m.connID, beacon.Response{Kind: kind, RequestID: m.req.RequestID, Outcome: outcome})
}

func (h *Host) setPaused(paused bool) {
	h.paused = paused
	if paused {
		return
	}
	pending := h.deferred
	h.deferred = nil
	for _, m := range pending {
		h.process(m)
	}
}

func (h *Host) dropDeferred(connID string) {
	kept := h.deferred[:0]
	for _, m := range h.deferred {
		if m.connID != connID {
			kept = append(kept, m)
		}
	}
	h.deferred = kept
}
