package host

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"party-beacon/internal/beacon"
	"party-beacon/internal/notify"
)

func (h *Host) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := h.sweepOnce(ctx, dt); err != nil {
				return
			}
		}
	}
}

// sweepOnce polls the registry outside the host loop and hands the roster
// over. Registry failures skip the tick without accumulating absence.
func (h *Host) sweepOnce(ctx context.Context, dt time.Duration) error {
	roster, err := h.registry.Roster(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metricSweepErrorsTotal.Add(1)
		log.Warn().Err(err).Str("session_id", h.SessionID()).Msg("beacon roster fetch failed")
		return nil
	}
	return h.post(rosterMsg{roster: roster, dt: dt})
}

func (h *Host) sweep(roster map[beacon.PlayerID]struct{}, dt time.Duration) {
	owner := h.registry.OwnerID()
	var expired []beacon.PlayerID
	for _, ps := range h.ledger.Players() {
		id := ps.PlayerID
		if _, present := roster[id]; present {
			h.ledger.MarkPlayerSeen(id)
			continue
		}
		if id == owner {
			h.ledger.ResetElapsed(id)
			continue
		}
		if connID, ok := h.submitter[id]; ok {
			if _, attached := h.conns[connID]; attached {
				h.ledger.ResetElapsed(id)
				continue
			}
		}
		limit := h.cfg.SessionTimeout
		if ps.PendingJoin {
			limit = h.cfg.TravelTimeout
		}
		if limit <= 0 {
			continue
		}
		if h.ledger.AddElapsed(id, dt) > limit {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		if h.ledger.RemovePlayer(id) {
			delete(h.submitter, id)
			metricSweepExpiredTotal.Add(1)
			log.Debug().Str("player_id", string(id)).Msg("beacon reservation expired")
			h.notify(notify.Event{Type: notify.EventPlayerExpired, PlayerID: id, Team: beacon.NoTeam})
		}
	}
	h.publishCount()
}
