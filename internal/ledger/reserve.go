package ledger

import (
	"party-beacon/internal/beacon"
)

// AddReservation records a new party. Parties are never split across teams
// and never partially merged with existing reservations.
func (l *Ledger) AddReservation(req beacon.PartyReservation) beacon.Outcome {
	if o := beacon.ValidateReservation(req); o != beacon.OutcomeAccepted {
		return o
	}

	if idx := l.indexOfLeader(req.LeaderID); idx >= 0 {
		existing := &l.parties[idx]
		if !existing.SameMembers(req) {
			return beacon.OutcomeContainsExistingPlayers
		}
		// Identical resubmission: refresh tokens and expect the members again.
		refreshTokens(existing, req.Players)
		for i := range existing.Players {
			existing.Players[i].ElapsedTime = 0
			l.pendingJoin[existing.Players[i].PlayerID] = struct{}{}
		}
		l.assertInvariants("add_duplicate")
		return beacon.OutcomeDuplicate
	}

	if o := l.policy.Admit(req); o != beacon.OutcomeAccepted {
		return o
	}
	if l.IsFull() {
		return beacon.OutcomeSessionFull
	}
	for _, pr := range req.Players {
		if l.indexOfMember(pr.PlayerID) >= 0 || l.IsPendingJoin(pr.PlayerID) {
			return beacon.OutcomeContainsExistingPlayers
		}
	}
	if l.consumed+req.Size() > l.cfg.MaxReservations {
		return beacon.OutcomeTeamLimitReached
	}
	team, ok := l.GetTeamAssignment(req)
	if !ok {
		return beacon.OutcomeTeamLimitReached
	}

	party := req.Clone()
	party.TeamNum = team
	for i := range party.Players {
		party.Players[i].ElapsedTime = 0
		l.pendingJoin[party.Players[i].PlayerID] = struct{}{}
	}
	l.parties = append(l.parties, party)
	l.recount()
	l.BestFitTeamAssignmentJiggle()
	l.assertInvariants("add")
	return beacon.OutcomeAccepted
}

// UpdateReservation appends the genuinely new members of update to the party
// led by update.LeaderID. Members reserved under another party move here.
func (l *Ledger) UpdateReservation(update beacon.PartyReservation) beacon.Outcome {
	if o := beacon.ValidateUpdate(update); o != beacon.OutcomeAccepted {
		return o
	}
	idx := l.indexOfLeader(update.LeaderID)
	if idx < 0 {
		return beacon.OutcomeNotFound
	}
	target := l.parties[idx]

	delta := make([]beacon.PlayerReservation, 0, len(update.Players))
	for _, pr := range update.Players {
		if !target.Has(pr.PlayerID) {
			delta = append(delta, pr)
		}
	}
	if len(delta) == 0 {
		refreshTokens(&l.parties[idx], update.Players)
		return beacon.OutcomeDuplicate
	}

	projected := target.Clone()
	projected.Players = append(projected.Players, delta...)
	if o := l.policy.Admit(projected); o != beacon.OutcomeAccepted {
		return o
	}

	movedTotal, movedSameTeam := 0, 0
	for _, pr := range delta {
		if j := l.indexOfMember(pr.PlayerID); j >= 0 {
			movedTotal++
			if l.parties[j].TeamNum == target.TeamNum {
				movedSameTeam++
			}
		}
	}
	if l.consumed+len(delta)-movedTotal > l.cfg.MaxReservations {
		return beacon.OutcomeIncorrectPlayerCount
	}
	if target.TeamNum != beacon.NoTeam && l.TeamOccupancy(target.TeamNum)+len(delta)-movedSameTeam > l.cfg.TeamSize {
		return beacon.OutcomeIncorrectPlayerCount
	}

	for _, pr := range delta {
		if j := l.indexOfMember(pr.PlayerID); j >= 0 {
			l.detach(j, pr.PlayerID)
		} else {
			l.pendingJoin[pr.PlayerID] = struct{}{}
		}
	}
	// detach never removes the target: none of its members were in delta.
	idx = l.indexOfLeader(update.LeaderID)
	for _, pr := range delta {
		pr.ElapsedTime = 0
		l.parties[idx].Players = append(l.parties[idx].Players, pr)
	}
	l.recount()
	l.BestFitTeamAssignmentJiggle()
	l.assertInvariants("update")
	return beacon.OutcomeAccepted
}

// RemoveReservation deletes the whole party led by leader.
func (l *Ledger) RemoveReservation(leader beacon.PlayerID) beacon.Outcome {
	idx := l.indexOfLeader(leader)
	if idx < 0 {
		return beacon.OutcomeNotFound
	}
	for _, pr := range l.parties[idx].Players {
		delete(l.pendingJoin, pr.PlayerID)
	}
	l.removeParty(idx)
	l.recount()
	l.BestFitTeamAssignmentJiggle()
	l.assertInvariants("remove_reservation")
	return beacon.OutcomeAccepted
}

// RemovePlayer drops one player wherever it is reserved, promoting a new
// leader when needed and deleting the party once empty.
func (l *Ledger) RemovePlayer(player beacon.PlayerID) bool {
	idx := l.indexOfMember(player)
	if idx < 0 {
		return false
	}
	delete(l.pendingJoin, player)
	l.detach(idx, player)
	l.recount()
	l.BestFitTeamAssignmentJiggle()
	l.assertInvariants("remove_player")
	return true
}

// UpdatePartyLeader moves member into the party led by newLeader, creating
// that party on the member's current team when it does not exist. Team
// mismatches across the move are left alone, but a move that would overflow
// the destination team is refused.
func (l *Ledger) UpdatePartyLeader(member, newLeader beacon.PlayerID) bool {
	if !member.Valid() || !newLeader.Valid() {
		return false
	}
	src := l.indexOfMember(member)
	if src < 0 {
		return false
	}
	if l.parties[src].LeaderID == newLeader {
		return false
	}
	srcTeam := l.parties[src].TeamNum
	rec := l.parties[src].Players[l.parties[src].Member(member)]

	if dst := l.indexOfLeader(newLeader); dst >= 0 {
		dstTeam := l.parties[dst].TeamNum
		if dstTeam != srcTeam && dstTeam != beacon.NoTeam && l.TeamOccupancy(dstTeam)+1 > l.cfg.TeamSize {
			return false
		}
	}

	l.detach(src, member)
	if dst := l.indexOfLeader(newLeader); dst >= 0 {
		l.parties[dst].Players = append(l.parties[dst].Players, rec)
	} else {
		l.parties = append(l.parties, beacon.PartyReservation{
			LeaderID: newLeader,
			TeamNum:  srcTeam,
			Players:  []beacon.PlayerReservation{rec},
		})
	}
	l.recount()
	l.BestFitTeamAssignmentJiggle()
	l.assertInvariants("update_party_leader")
	return true
}

// detach removes player from the party at idx. A removed leader is replaced
// by the first remaining member not reserved elsewhere; an emptied party is
// deleted. Pending-join bookkeeping is left to the caller.
func (l *Ledger) detach(idx int, player beacon.PlayerID) {
	p := &l.parties[idx]
	m := p.Member(player)
	if m < 0 {
		return
	}
	p.Players = append(p.Players[:m], p.Players[m+1:]...)
	if len(p.Players) == 0 {
		l.removeParty(idx)
		return
	}
	if p.LeaderID != player {
		return
	}
	for _, pr := range p.Players {
		if !pr.PlayerID.Valid() {
			continue
		}
		if other := l.indexOfMember(pr.PlayerID); other >= 0 && other != idx {
			continue
		}
		p.LeaderID = pr.PlayerID
		return
	}
	l.removeParty(idx)
}

func (l *Ledger) removeParty(idx int) {
	l.parties = append(l.parties[:idx], l.parties[idx+1:]...)
}

func refreshTokens(p *beacon.PartyReservation, incoming []beacon.PlayerReservation) {
	for _, in := range incoming {
		if in.ValidationStr == "" {
			continue
		}
		if m := p.Member(in.PlayerID); m >= 0 {
			p.Players[m].ValidationStr = in.ValidationStr
		}
	}
}
