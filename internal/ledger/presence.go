package ledger

import (
	"time"

	"party-beacon/internal/beacon"
)

type PlayerStatus struct {
	PlayerID    beacon.PlayerID
	LeaderID    beacon.PlayerID
	TeamNum     int
	Elapsed     time.Duration
	PendingJoin bool
}

// Players lists every reserved player for the presence sweep.
func (l *Ledger) Players() []PlayerStatus {
	out := make([]PlayerStatus, 0, l.consumed)
	for _, p := range l.parties {
		for _, pr := range p.Players {
			out = append(out, PlayerStatus{
				PlayerID:    pr.PlayerID,
				LeaderID:    p.LeaderID,
				TeamNum:     p.TeamNum,
				Elapsed:     pr.ElapsedTime,
				PendingJoin: l.IsPendingJoin(pr.PlayerID),
			})
		}
	}
	return out
}

// MarkPlayerSeen records that the player showed up in the session.
func (l *Ledger) MarkPlayerSeen(player beacon.PlayerID) {
	delete(l.pendingJoin, player)
	l.ResetElapsed(player)
}

func (l *Ledger) ResetElapsed(player beacon.PlayerID) {
	if rec := l.playerRecord(player); rec != nil {
		rec.ElapsedTime = 0
	}
}

// AddElapsed accumulates absence time and returns the new total.
func (l *Ledger) AddElapsed(player beacon.PlayerID, d time.Duration) time.Duration {
	rec := l.playerRecord(player)
	if rec == nil {
		return 0
	}
	rec.ElapsedTime += d
	return rec.ElapsedTime
}

func (l *Ledger) playerRecord(player beacon.PlayerID) *beacon.PlayerReservation {
	idx := l.indexOfMember(player)
	if idx < 0 {
		return nil
	}
	return &l.parties[idx].Players[l.parties[idx].Member(player)]
}
