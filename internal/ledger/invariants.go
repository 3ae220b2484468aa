package ledger

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"party-beacon/internal/beacon"
)

// CheckInvariants returns the first structural violation found, or nil.
func (l *Ledger) CheckInvariants() error {
	seen := map[beacon.PlayerID]beacon.PlayerID{}
	leaders := map[beacon.PlayerID]struct{}{}
	total := 0
	for _, p := range l.parties {
		if !p.LeaderID.Valid() {
			return fmt.Errorf("party with invalid leader")
		}
		if _, dup := leaders[p.LeaderID]; dup {
			return fmt.Errorf("leader %s heads two parties", p.LeaderID)
		}
		leaders[p.LeaderID] = struct{}{}
		if len(p.Players) == 0 {
			return fmt.Errorf("party %s is empty", p.LeaderID)
		}
		for _, pr := range p.Players {
			if other, dup := seen[pr.PlayerID]; dup {
				return fmt.Errorf("player %s reserved under %s and %s", pr.PlayerID, other, p.LeaderID)
			}
			seen[pr.PlayerID] = p.LeaderID
		}
		total += p.Size()
	}
	if total != l.consumed {
		return fmt.Errorf("consumed count %d does not match %d reserved players", l.consumed, total)
	}
	if total > l.cfg.MaxReservations {
		return fmt.Errorf("%d reserved players exceed capacity %d", total, l.cfg.MaxReservations)
	}
	if l.cfg.TeamCount > 1 {
		for team := 0; team < l.cfg.TeamCount; team++ {
			if n := l.TeamOccupancy(team); n > l.cfg.TeamSize {
				return fmt.Errorf("team %d holds %d players, limit %d", team, n, l.cfg.TeamSize)
			}
		}
	} else if n := l.TeamOccupancy(l.cfg.ForceTeam); n > l.cfg.TeamSize {
		return fmt.Errorf("team %d holds %d players, limit %d", l.cfg.ForceTeam, n, l.cfg.TeamSize)
	}
	for id := range l.pendingJoin {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("pending player %s has no reservation", id)
		}
	}
	return nil
}

func (l *Ledger) assertInvariants(op string) {
	err := l.CheckInvariants()
	if err == nil {
		return
	}
	if l.cfg.Strict {
		panic(fmt.Sprintf("ledger invariant violated after %s: %v", op, err))
	}
	log.Error().
		Err(err).
		Str("op", op).
		Int("consumed", l.consumed).
		Int("parties", len(l.parties)).
		Msg("ledger invariant violated")
}
