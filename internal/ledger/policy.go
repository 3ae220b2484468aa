package ledger

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"party-beacon/internal/beacon"
)

// ReservationPolicy admits or refuses a party before any capacity check.
// Admit returns OutcomeAccepted to let the party through.
type ReservationPolicy interface {
	Name() string
	Admit(party beacon.PartyReservation) beacon.Outcome
}

type OpenPolicy struct{}

func (OpenPolicy) Name() string { return "open" }

func (OpenPolicy) Admit(beacon.PartyReservation) beacon.Outcome {
	return beacon.OutcomeAccepted
}

type BanListPolicy struct {
	banned mapset.Set[beacon.PlayerID]
}

func NewBanListPolicy(ids ...beacon.PlayerID) *BanListPolicy {
	p := &BanListPolicy{banned: mapset.NewSetWithSize[beacon.PlayerID](len(ids))}
	for _, id := range ids {
		if id.Valid() {
			p.banned.Add(id)
		}
	}
	return p
}

func (p *BanListPolicy) Name() string { return "ban_list" }

func (p *BanListPolicy) Admit(party beacon.PartyReservation) beacon.Outcome {
	if p.banned.Contains(party.LeaderID) || p.banned.ContainsAny(party.PlayerIDs()...) {
		return beacon.OutcomeDeniedBanned
	}
	return beacon.OutcomeAccepted
}

type PartySizePolicy struct {
	Max int
}

func (p PartySizePolicy) Name() string { return "party_size" }

func (p PartySizePolicy) Admit(party beacon.PartyReservation) beacon.Outcome {
	if p.Max > 0 && party.Size() > p.Max {
		return beacon.OutcomeIncorrectPlayerCount
	}
	return beacon.OutcomeAccepted
}

// ChainPolicy returns the first refusal of its members.
type ChainPolicy []ReservationPolicy

func (c ChainPolicy) Name() string {
	names := make([]string, 0, len(c))
	for _, p := range c {
		names = append(names, p.Name())
	}
	return strings.Join(names, "+")
}

func (c ChainPolicy) Admit(party beacon.PartyReservation) beacon.Outcome {
	for _, p := range c {
		if o := p.Admit(party); o != beacon.OutcomeAccepted {
			return o
		}
	}
	return beacon.OutcomeAccepted
}

// NewPolicy builds a policy from a comma separated list of names:
// open, ban_list, party_size.
func NewPolicy(names string, banned []string, maxPartySize int) (ReservationPolicy, error) {
	var chain ChainPolicy
	for _, name := range strings.Split(names, ",") {
		switch strings.TrimSpace(name) {
		case "", "open":
		case "ban_list":
			ids := make([]beacon.PlayerID, 0, len(banned))
			for _, b := range banned {
				ids = append(ids, beacon.PlayerID(strings.TrimSpace(b)))
			}
			chain = append(chain, NewBanListPolicy(ids...))
		case "party_size":
			chain = append(chain, PartySizePolicy{Max: maxPartySize})
		default:
			return nil, fmt.Errorf("reservation policy %q: %w", name, ErrInvalidConfig)
		}
	}
	switch len(chain) {
	case 0:
		return OpenPolicy{}, nil
	case 1:
		return chain[0], nil
	default:
		return chain, nil
	}
}
