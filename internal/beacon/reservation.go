package beacon

import "time"

// NoTeam marks a party that has not been placed on a team yet.
const NoTeam = -1

// PlayerID is an opaque, globally unique player identifier.
type PlayerID string

func (id PlayerID) Valid() bool {
	return id != ""
}

// PlayerReservation is one reserved slot. ValidationStr is an opaque auth
// token issued elsewhere; it is stored and forwarded, never verified here.
type PlayerReservation struct {
	PlayerID      PlayerID      `json:"player_id"`
	ValidationStr string        `json:"validation,omitempty"`
	ElapsedTime   time.Duration `json:"-"`
}

// PartyReservation holds the slots claimed on behalf of one party leader.
type PartyReservation struct {
	LeaderID PlayerID            `json:"leader_id"`
	TeamNum  int                 `json:"team"`
	Players  []PlayerReservation `json:"players"`
}

func (p PartyReservation) Size() int {
	return len(p.Players)
}

// Member returns the index of id in the party, or -1.
func (p PartyReservation) Member(id PlayerID) int {
	for i, pr := range p.Players {
		if pr.PlayerID == id {
			return i
		}
	}
	return -1
}

func (p PartyReservation) Has(id PlayerID) bool {
	return p.Member(id) >= 0
}

// PlayerIDs returns the member ids in reservation order.
func (p PartyReservation) PlayerIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(p.Players))
	for _, pr := range p.Players {
		ids = append(ids, pr.PlayerID)
	}
	return ids
}

// SameMembers reports whether both parties reserve exactly the same player set.
func (p PartyReservation) SameMembers(other PartyReservation) bool {
	if len(p.Players) != len(other.Players) {
		return false
	}
	for _, pr := range other.Players {
		if !p.Has(pr.PlayerID) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to hand across goroutines.
func (p PartyReservation) Clone() PartyReservation {
	out := p
	out.Players = make([]PlayerReservation, len(p.Players))
	copy(out.Players, p.Players)
	return out
}

// ValidateReservation is the shape check applied to new reservations before
// any business rule runs.
func ValidateReservation(p PartyReservation) Outcome {
	if !p.LeaderID.Valid() || len(p.Players) == 0 {
		return OutcomeMalformedRequest
	}
	seen := make(map[PlayerID]struct{}, len(p.Players))
	leaderOK := false
	for _, pr := range p.Players {
		if !pr.PlayerID.Valid() {
			return OutcomeMalformedRequest
		}
		if _, dup := seen[pr.PlayerID]; dup {
			return OutcomeMalformedRequest
		}
		seen[pr.PlayerID] = struct{}{}
		if pr.PlayerID == p.LeaderID && pr.ValidationStr != "" {
			leaderOK = true
		}
	}
	if !leaderOK {
		return OutcomeMalformedRequest
	}
	return OutcomeAccepted
}

// ValidateUpdate is the shape check for reservation updates. The update
// carries only the members being added, so the leader need not be listed.
func ValidateUpdate(p PartyReservation) Outcome {
	if !p.LeaderID.Valid() || len(p.Players) == 0 {
		return OutcomeMalformedRequest
	}
	seen := make(map[PlayerID]struct{}, len(p.Players))
	for _, pr := range p.Players {
		if !pr.PlayerID.Valid() {
			return OutcomeMalformedRequest
		}
		if _, dup := seen[pr.PlayerID]; dup {
			return OutcomeMalformedRequest
		}
		seen[pr.PlayerID] = struct{}{}
	}
	return OutcomeAccepted
}
