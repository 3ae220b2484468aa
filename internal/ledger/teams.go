package ledger

import (
	"sort"

	"github.com/rs/zerolog/log"

	"party-beacon/internal/beacon"
)

// GetTeamAssignment picks a team with room for the whole party. The second
// return is false when no team can take it.
func (l *Ledger) GetTeamAssignment(party beacon.PartyReservation) (int, bool) {
	size := party.Size()
	if l.cfg.TeamCount <= 1 {
		team := l.cfg.ForceTeam
		return team, l.TeamOccupancy(team)+size <= l.cfg.TeamSize
	}

	occupancy := make([]int, l.cfg.TeamCount)
	for _, p := range l.parties {
		if p.TeamNum >= 0 && p.TeamNum < l.cfg.TeamCount {
			occupancy[p.TeamNum] += p.Size()
		}
	}
	candidates := make([]int, 0, l.cfg.TeamCount)
	for team, n := range occupancy {
		if n+size <= l.cfg.TeamSize {
			candidates = append(candidates, team)
		}
	}
	if len(candidates) == 0 {
		return beacon.NoTeam, false
	}

	switch l.cfg.TeamAssignment {
	case AssignBestFit:
		best := candidates[0]
		for _, team := range candidates[1:] {
			if occupancy[team] > occupancy[best] {
				best = team
			}
		}
		return best, true
	case AssignRandom:
		return candidates[l.rnd.Intn(len(candidates))], true
	case AssignManual:
		if party.TeamNum != beacon.NoTeam {
			for _, team := range candidates {
				if team == party.TeamNum {
					return team, true
				}
			}
			return beacon.NoTeam, false
		}
		return smallest(candidates, occupancy), true
	default:
		return smallest(candidates, occupancy), true
	}
}

func smallest(candidates, occupancy []int) int {
	best := candidates[0]
	for _, team := range candidates[1:] {
		if occupancy[team] < occupancy[best] {
			best = team
		}
	}
	return best
}

// BestFitTeamAssignmentJiggle re-packs every party largest first so that
// space freed by removals is consolidated. If the re-pack fails the previous
// assignment is kept.
func (l *Ledger) BestFitTeamAssignmentJiggle() {
	if l.cfg.TeamAssignment != AssignBestFit || l.cfg.TeamCount <= 1 || len(l.parties) < 2 {
		return
	}
	prev := make([]int, len(l.parties))
	order := make([]int, len(l.parties))
	for i, p := range l.parties {
		prev[i] = p.TeamNum
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return l.parties[order[a]].Size() > l.parties[order[b]].Size()
	})

	for i := range l.parties {
		l.parties[i].TeamNum = beacon.NoTeam
	}
	for _, i := range order {
		team, ok := l.GetTeamAssignment(l.parties[i])
		if !ok {
			for j, t := range prev {
				l.parties[j].TeamNum = t
			}
			log.Warn().
				Str("leader_id", string(l.parties[i].LeaderID)).
				Int("party_size", l.parties[i].Size()).
				Msg("team re-pack failed, keeping previous assignment")
			return
		}
		l.parties[i].TeamNum = team
	}
}
