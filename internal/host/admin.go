package host

import (
	"context"

	"party-beacon/internal/beacon"
	"party-beacon/internal/notify"
)

// Snapshot is a read-only view of the hosted session.
type Snapshot struct {
	SessionID   string                    `json:"session_id"`
	OwnerID     beacon.PlayerID           `json:"owner_id"`
	Capacity    int                       `json:"capacity"`
	Consumed    int                       `json:"consumed"`
	Remaining   int                       `json:"remaining"`
	Full        bool                      `json:"full"`
	Paused      bool                      `json:"paused"`
	Deferred    int                       `json:"deferred"`
	Connections int                       `json:"connections"`
	Policy      string                    `json:"policy"`
	Parties     []beacon.PartyReservation `json:"parties"`
	PendingJoin []beacon.PlayerID         `json:"pending_join"`
}

func (h *Host) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := h.call(ctx, func() {
		snap = Snapshot{
			SessionID:   h.SessionID(),
			OwnerID:     h.registry.OwnerID(),
			Capacity:    h.ledger.Config().MaxReservations,
			Consumed:    h.ledger.NumConsumedReservations(),
			Remaining:   h.ledger.RemainingReservations(),
			Full:        h.ledger.IsFull(),
			Paused:      h.paused,
			Deferred:    len(h.deferred),
			Connections: len(h.conns),
			Policy:      h.ledger.Policy().Name(),
			Parties:     h.ledger.Reservations(),
			PendingJoin: []beacon.PlayerID{},
		}
		for _, ps := range h.ledger.Players() {
			if ps.PendingJoin {
				snap.PendingJoin = append(snap.PendingJoin, ps.PlayerID)
			}
		}
	}); err != nil {
		// fn may still run on the host goroutine; snap is not ours to read.
		return Snapshot{}, err
	}
	return snap, nil
}

// AddReservation lets the social layer reserve on behalf of a party without
// a beacon connection.
func (h *Host) AddReservation(ctx context.Context, party beacon.PartyReservation) (beacon.Outcome, error) {
	var outcome beacon.Outcome
	if err := h.call(ctx, func() {
		outcome = h.ledger.AddReservation(party)
		if outcome == beacon.OutcomeAccepted {
			h.notifyParty(notify.EventReservationAdded, party.LeaderID)
		}
		h.publishCount()
	}); err != nil {
		return beacon.OutcomeGeneralError, err
	}
	return outcome, nil
}

func (h *Host) UpdateReservation(ctx context.Context, party beacon.PartyReservation) (beacon.Outcome, error) {
	var outcome beacon.Outcome
	if err := h.call(ctx, func() {
		outcome = h.ledger.UpdateReservation(party)
		if outcome == beacon.OutcomeAccepted {
			h.notifyParty(notify.EventReservationUpdated, party.LeaderID)
		}
		h.publishCount()
	}); err != nil {
		return beacon.OutcomeGeneralError, err
	}
	return outcome, nil
}

func (h *Host) RemoveReservation(ctx context.Context, leader beacon.PlayerID) (beacon.Outcome, error) {
	var outcome beacon.Outcome
	if err := h.call(ctx, func() {
		outcome = h.ledger.RemoveReservation(leader)
		if outcome == beacon.OutcomeAccepted {
			h.notify(notify.Event{Type: notify.EventReservationRemoved, LeaderID: leader, Team: beacon.NoTeam})
		}
		h.publishCount()
	}); err != nil {
		return beacon.OutcomeGeneralError, err
	}
	return outcome, nil
}

func (h *Host) RemovePlayer(ctx context.Context, player beacon.PlayerID) (bool, error) {
	var removed bool
	if err := h.call(ctx, func() {
		removed = h.ledger.RemovePlayer(player)
		if removed {
			delete(h.submitter, player)
			h.notify(notify.Event{Type: notify.EventPlayerRemoved, PlayerID: player, Team: beacon.NoTeam})
		}
		h.publishCount()
	}); err != nil {
		return false, err
	}
	return removed, nil
}

func (h *Host) UpdatePartyLeader(ctx context.Context, member, newLeader beacon.PlayerID) (bool, error) {
	var moved bool
	if err := h.call(ctx, func() {
		moved = h.ledger.UpdatePartyLeader(member, newLeader)
	}); err != nil {
		return false, err
	}
	return moved, nil
}

// Pause defers reserve and update requests until resumed. Resuming replays
// them in arrival order.
func (h *Host) Pause(ctx context.Context, paused bool) error {
	return h.call(ctx, func() {
		h.setPaused(paused)
	})
}
